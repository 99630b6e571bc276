package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	if err := scanner.Scan(&a.ID, &a.ChildID, &a.Description, &a.Points, &a.Date); err != nil {
		return nil, err
	}
	return &a, nil
}

const activityCols = `id, child_id, description, points, date`

// Create logs an activity and applies its points to the child's balance in one
// transaction. The balance never drops below zero.
func (s *ActivityStore) Create(in model.NewActivity) (*model.Activity, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE users SET total_points = MAX(total_points + ?, 0) WHERE id = ? AND role = ?`,
		in.Points, in.ChildID, model.RoleChild,
	)
	if err != nil {
		return nil, fmt.Errorf("apply points: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("child %d: %w", in.ChildID, model.ErrNotFound)
	}

	result, err := tx.Exec(
		`INSERT INTO activities (child_id, description, points, date) VALUES (?, ?, ?, ?)`,
		in.ChildID, in.Description, in.Points, in.Date.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActivityStore) GetByID(id int64) (*model.Activity, error) {
	row := s.db.QueryRow(`SELECT `+activityCols+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// Delete removes an activity and takes its points back from the child, floored at zero.
func (s *ActivityStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var childID int64
	var points int
	err = tx.QueryRow(`SELECT child_id, points FROM activities WHERE id = ?`, id).Scan(&childID, &points)
	if err == sql.ErrNoRows {
		return fmt.Errorf("activity %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get activity: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM activities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE users SET total_points = MAX(total_points - ?, 0) WHERE id = ?`,
		points, childID,
	); err != nil {
		return fmt.Errorf("revert points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListByChild returns a child's full activity history, oldest first.
func (s *ActivityStore) ListByChild(childID int64) ([]model.Activity, error) {
	return s.list(
		`SELECT `+activityCols+` FROM activities WHERE child_id = ? ORDER BY date ASC, id ASC`,
		childID,
	)
}

// ListByParent returns activities for all of a parent's children logged at or after since,
// newest first. A zero since returns everything.
func (s *ActivityStore) ListByParent(parentID int64, since time.Time) ([]model.Activity, error) {
	return s.list(
		`SELECT `+activityCols+` FROM activities
		 WHERE child_id IN (SELECT id FROM users WHERE parent_id = ?) AND date >= ?
		 ORDER BY date DESC, id DESC`,
		parentID, since.UTC(),
	)
}

func (s *ActivityStore) list(query string, args ...any) ([]model.Activity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
