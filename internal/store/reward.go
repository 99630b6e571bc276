package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorechart/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var createdBy sql.NullInt64
	var global int

	err := scanner.Scan(&r.ID, &r.Name, &r.Description, &r.ImageURL, &r.PointsCost, &createdBy, &global, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if createdBy.Valid {
		r.CreatedBy = &createdBy.Int64
	}
	r.IsGlobal = global != 0
	return &r, nil
}

const rewardCols = `id, name, description, image_url, points_cost, created_by, is_global, created_at`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *RewardStore) Create(in model.NewReward) (*model.Reward, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO rewards (name, description, image_url, points_cost, created_by, is_global) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Description, in.ImageURL, in.PointsCost, in.CreatedBy, boolInt(in.IsGlobal),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListForParent returns the parent's own rewards plus every global reward, cheapest first.
func (s *RewardStore) ListForParent(parentID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardCols+` FROM rewards WHERE created_by = ? OR is_global = 1 ORDER BY points_cost ASC, name ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, in model.NewReward) (*model.Reward, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	res, err := s.db.Exec(
		`UPDATE rewards SET name = ?, description = ?, image_url = ?, points_cost = ?, is_global = ? WHERE id = ? AND created_by = ?`,
		in.Name, in.Description, in.ImageURL, in.PointsCost, boolInt(in.IsGlobal), id, in.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	if err := requireRow(res, "reward", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes a reward the parent created. Global rewards of other parents stay.
func (s *RewardStore) Delete(parentID, id int64) error {
	res, err := s.db.Exec(`DELETE FROM rewards WHERE id = ? AND created_by = ?`, id, parentID)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	return requireRow(res, "reward", id)
}
