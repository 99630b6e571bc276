package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func scanBadge(scanner interface{ Scan(...any) error }) (*model.Badge, error) {
	var b model.Badge
	err := scanner.Scan(&b.ID, &b.ParentID, &b.Name, &b.Description, &b.Icon, &b.RequiredDays, &b.ActivityType, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const badgeCols = `id, parent_id, name, description, icon, required_days, activity_type, created_at`

// --- Catalog methods ---

func (s *BadgeStore) Create(in model.NewBadge) (*model.Badge, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO badges (parent_id, name, description, icon, required_days, activity_type) VALUES (?, ?, ?, ?, ?, ?)`,
		in.ParentID, in.Name, in.Description, in.Icon, in.RequiredDays, in.ActivityType,
	)
	if err != nil {
		return nil, fmt.Errorf("insert badge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BadgeStore) GetByID(id int64) (*model.Badge, error) {
	row := s.db.QueryRow(`SELECT `+badgeCols+` FROM badges WHERE id = ?`, id)
	b, err := scanBadge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get badge: %w", err)
	}
	return b, nil
}

// ListByParent returns the parent's badge catalog in creation order.
func (s *BadgeStore) ListByParent(parentID int64) ([]model.Badge, error) {
	rows, err := s.db.Query(`SELECT `+badgeCols+` FROM badges WHERE parent_id = ? ORDER BY id ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

func (s *BadgeStore) Update(id int64, in model.NewBadge) (*model.Badge, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	res, err := s.db.Exec(
		`UPDATE badges SET name = ?, description = ?, icon = ?, required_days = ?, activity_type = ? WHERE id = ? AND parent_id = ?`,
		in.Name, in.Description, in.Icon, in.RequiredDays, in.ActivityType, id, in.ParentID,
	)
	if err != nil {
		return nil, fmt.Errorf("update badge: %w", err)
	}
	if err := requireRow(res, "badge", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes one of the parent's badges and, through the foreign key, every award of it.
func (s *BadgeStore) Delete(parentID, id int64) error {
	res, err := s.db.Exec(`DELETE FROM badges WHERE id = ? AND parent_id = ?`, id, parentID)
	if err != nil {
		return fmt.Errorf("delete badge: %w", err)
	}
	return requireRow(res, "badge", id)
}

// --- Award methods ---

// HeldBadgeIDs returns the set of badge IDs the child already holds.
func (s *BadgeStore) HeldBadgeIDs(childID int64) (map[int64]bool, error) {
	rows, err := s.db.Query(`SELECT badge_id FROM child_badges WHERE child_id = ?`, childID)
	if err != nil {
		return nil, fmt.Errorf("list held badges: %w", err)
	}
	defer rows.Close()

	held := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan badge id: %w", err)
		}
		held[id] = true
	}
	return held, rows.Err()
}

// Award records that a child earned a badge. It is idempotent: when the child
// already holds the badge nothing is written and inserted is false.
func (s *BadgeStore) Award(childID, badgeID int64, earnedAt time.Time) (inserted bool, err error) {
	result, err := s.db.Exec(
		`INSERT INTO child_badges (child_id, badge_id, date_earned) VALUES (?, ?, ?)
		 ON CONFLICT(child_id, badge_id) DO NOTHING`,
		childID, badgeID, earnedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert child badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListEarned returns the badges a child holds, most recent first.
func (s *BadgeStore) ListEarned(childID int64) ([]model.EarnedBadge, error) {
	rows, err := s.db.Query(
		`SELECT b.id, b.parent_id, b.name, b.description, b.icon, b.required_days, b.activity_type, b.created_at, cb.date_earned
		 FROM child_badges cb JOIN badges b ON b.id = cb.badge_id
		 WHERE cb.child_id = ? ORDER BY cb.date_earned DESC, b.id DESC`,
		childID,
	)
	if err != nil {
		return nil, fmt.Errorf("list earned badges: %w", err)
	}
	defer rows.Close()

	var earned []model.EarnedBadge
	for rows.Next() {
		var e model.EarnedBadge
		if err := rows.Scan(&e.ID, &e.ParentID, &e.Name, &e.Description, &e.Icon, &e.RequiredDays, &e.ActivityType, &e.CreatedAt, &e.DateEarned); err != nil {
			return nil, fmt.Errorf("scan earned badge: %w", err)
		}
		earned = append(earned, e)
	}
	return earned, rows.Err()
}
