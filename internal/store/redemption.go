package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

type RedemptionStore struct {
	db *sql.DB
}

func NewRedemptionStore(db *sql.DB) *RedemptionStore {
	return &RedemptionStore{db: db}
}

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RedemptionRequest, error) {
	var r model.RedemptionRequest
	var decidedAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.ChildID, &r.RewardID, &r.RequestDate, &r.Status, &r.Note, &decidedAt)
	if err != nil {
		return nil, err
	}

	if decidedAt.Valid {
		r.DecidedAt = &decidedAt.Time
	}
	return &r, nil
}

const redemptionCols = `id, child_id, reward_id, request_date, status, note, decided_at`

// Request files a pending redemption. The child must currently hold at least the
// reward's cost; points are only deducted on approval.
func (s *RedemptionStore) Request(childID, rewardID int64) (*model.RedemptionRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance int
	err = tx.QueryRow(`SELECT total_points FROM users WHERE id = ? AND role = ?`, childID, model.RoleChild).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("child %d: %w", childID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	var cost int
	err = tx.QueryRow(`SELECT points_cost FROM rewards WHERE id = ?`, rewardID).Scan(&cost)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reward %d: %w", rewardID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reward cost: %w", err)
	}

	if balance < cost {
		return nil, fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientPoints, balance, cost)
	}

	result, err := tx.Exec(
		`INSERT INTO redemption_requests (child_id, reward_id, request_date, status) VALUES (?, ?, ?, ?)`,
		childID, rewardID, time.Now().UTC(), model.RedemptionPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption request: %w", err)
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

func (s *RedemptionStore) GetByID(id int64) (*model.RedemptionRequest, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM redemption_requests WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption request: %w", err)
	}
	return r, nil
}

// Decide approves or rejects a request. The reward's cost is deducted, floored at
// zero, the first time a request becomes approved.
func (s *RedemptionStore) Decide(id int64, status model.RedemptionStatus, note string) (*model.RedemptionRequest, error) {
	if !status.IsDecision() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var childID, rewardID int64
	var prev model.RedemptionStatus
	err = tx.QueryRow(
		`SELECT child_id, reward_id, status FROM redemption_requests WHERE id = ?`, id,
	).Scan(&childID, &rewardID, &prev)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("redemption request %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption request: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE redemption_requests SET status = ?, note = ?, decided_at = ? WHERE id = ?`,
		status, note, time.Now().UTC(), id,
	); err != nil {
		return nil, fmt.Errorf("update redemption status: %w", err)
	}

	if status == model.RedemptionApproved && prev != model.RedemptionApproved {
		if _, err := tx.Exec(
			`UPDATE users SET total_points = MAX(total_points - (SELECT points_cost FROM rewards WHERE id = ?), 0) WHERE id = ?`,
			rewardID, childID,
		); err != nil {
			return nil, fmt.Errorf("deduct points: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *RedemptionStore) ListByChild(childID int64) ([]model.RedemptionRequest, error) {
	return s.list(
		`SELECT `+redemptionCols+` FROM redemption_requests WHERE child_id = ? ORDER BY request_date DESC, id DESC`,
		childID,
	)
}

// ListForParent returns requests from all of a parent's children, optionally
// narrowed to one status. An empty status returns all.
func (s *RedemptionStore) ListForParent(parentID int64, status model.RedemptionStatus) ([]model.RedemptionRequest, error) {
	return s.list(
		`SELECT `+redemptionCols+` FROM redemption_requests
		 WHERE child_id IN (SELECT id FROM users WHERE parent_id = ?) AND (? = '' OR status = ?)
		 ORDER BY request_date DESC, id DESC`,
		parentID, status, status,
	)
}

func (s *RedemptionStore) list(query string, args ...any) ([]model.RedemptionRequest, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redemption requests: %w", err)
	}
	defer rows.Close()

	var requests []model.RedemptionRequest
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}
