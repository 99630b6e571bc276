package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/dukerupert/chorechart/internal/model"
)

const topN = 5

// ReportStore runs the parent dashboard aggregates. Each report is scoped to one
// parent and can be narrowed to a single child by name.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// ReportFilter narrows a report. An empty ChildName covers all of the parent's children.
type ReportFilter struct {
	ParentID  int64
	ChildName string
}

func (f ReportFilter) apply(q sq.SelectBuilder, userAlias string) sq.SelectBuilder {
	q = q.Where(sq.Eq{userAlias + ".parent_id": f.ParentID})
	if f.ChildName != "" {
		q = q.Where(sq.Eq{userAlias + ".name": f.ChildName})
	}
	return q
}

func (s *ReportStore) query(q sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.Query(query, args...)
}

// TopRules counts point-earning activities per description.
func (s *ReportStore) TopRules(f ReportFilter) ([]model.RuleCount, error) {
	q := sq.Select("a.description", "COUNT(*) AS n", "SUM(a.points)").
		From("activities a").
		Join("users u ON u.id = a.child_id").
		Where(sq.Gt{"a.points": 0}).
		GroupBy("a.description").
		OrderBy("n DESC", "a.description ASC").
		Limit(topN)

	rows, err := s.query(f.apply(q, "u"))
	if err != nil {
		return nil, fmt.Errorf("top rules: %w", err)
	}
	defer rows.Close()

	var out []model.RuleCount
	for rows.Next() {
		var r model.RuleCount
		if err := rows.Scan(&r.Description, &r.Count, &r.Points); err != nil {
			return nil, fmt.Errorf("scan rule count: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PointsTrend sums points per calendar day (UTC), oldest first.
func (s *ReportStore) PointsTrend(f ReportFilter) ([]model.DailyPoints, error) {
	q := sq.Select("substr(a.date, 1, 10) AS day", "SUM(a.points)").
		From("activities a").
		Join("users u ON u.id = a.child_id").
		GroupBy("day").
		OrderBy("day ASC")

	rows, err := s.query(f.apply(q, "u"))
	if err != nil {
		return nil, fmt.Errorf("points trend: %w", err)
	}
	defer rows.Close()

	var out []model.DailyPoints
	for rows.Next() {
		var d model.DailyPoints
		if err := rows.Scan(&d.Day, &d.Points); err != nil {
			return nil, fmt.Errorf("scan daily points: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopBadges counts awards per badge name.
func (s *ReportStore) TopBadges(f ReportFilter) ([]model.BadgeCount, error) {
	q := sq.Select("b.name", "COUNT(*) AS n").
		From("child_badges cb").
		Join("badges b ON b.id = cb.badge_id").
		Join("users u ON u.id = cb.child_id").
		GroupBy("b.name").
		OrderBy("n DESC", "b.name ASC").
		Limit(topN)

	rows, err := s.query(f.apply(q, "u"))
	if err != nil {
		return nil, fmt.Errorf("top badges: %w", err)
	}
	defer rows.Close()

	var out []model.BadgeCount
	for rows.Next() {
		var b model.BadgeCount
		if err := rows.Scan(&b.Name, &b.Count); err != nil {
			return nil, fmt.Errorf("scan badge count: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Redemptions lists redemption requests with child and reward names, newest first.
func (s *ReportStore) Redemptions(f ReportFilter) ([]model.RedemptionRow, error) {
	q := sq.Select("rr.id", "u.name", "r.name", "r.points_cost", "rr.request_date", "rr.status").
		From("redemption_requests rr").
		Join("users u ON u.id = rr.child_id").
		Join("rewards r ON r.id = rr.reward_id").
		OrderBy("rr.request_date DESC", "rr.id DESC")

	rows, err := s.query(f.apply(q, "u"))
	if err != nil {
		return nil, fmt.Errorf("redemptions report: %w", err)
	}
	defer rows.Close()

	var out []model.RedemptionRow
	for rows.Next() {
		var r model.RedemptionRow
		if err := rows.Scan(&r.ID, &r.ChildName, &r.RewardName, &r.PointsCost, &r.RequestDate, &r.Status); err != nil {
			return nil, fmt.Errorf("scan redemption row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
