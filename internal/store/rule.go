package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorechart/internal/model"
)

type RuleStore struct {
	db *sql.DB
}

func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

func scanRule(scanner interface{ Scan(...any) error }) (*model.Rule, error) {
	var r model.Rule
	if err := scanner.Scan(&r.ID, &r.ParentID, &r.Name, &r.Description, &r.Points, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const ruleCols = `id, parent_id, name, description, points, created_at`

func (s *RuleStore) Create(in model.NewRule) (*model.Rule, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO rules (parent_id, name, description, points) VALUES (?, ?, ?, ?)`,
		in.ParentID, in.Name, in.Description, in.Points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RuleStore) GetByID(id int64) (*model.Rule, error) {
	row := s.db.QueryRow(`SELECT `+ruleCols+` FROM rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return r, nil
}

// ListByParent returns a parent's rules, rewards first (positive points), then by name.
func (s *RuleStore) ListByParent(parentID int64) ([]model.Rule, error) {
	rows, err := s.db.Query(
		`SELECT `+ruleCols+` FROM rules WHERE parent_id = ? ORDER BY points > 0 DESC, name ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

// Update changes a rule. Badges link to rules by name, so renaming a rule leaves
// its badges pointing at the old name.
func (s *RuleStore) Update(id int64, in model.NewRule) (*model.Rule, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	res, err := s.db.Exec(
		`UPDATE rules SET name = ?, description = ?, points = ? WHERE id = ? AND parent_id = ?`,
		in.Name, in.Description, in.Points, id, in.ParentID,
	)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	if err := requireRow(res, "rule", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *RuleStore) Delete(parentID, id int64) error {
	res, err := s.db.Exec(`DELETE FROM rules WHERE id = ? AND parent_id = ?`, id, parentID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireRow(res, "rule", id)
}
