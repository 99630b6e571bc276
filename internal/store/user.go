package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorechart/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var parentID, age sql.NullInt64

	err := scanner.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &parentID, &age, &u.TotalPoints, &u.ImageURL, &u.CreatedAt)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		u.ParentID = &parentID.Int64
	}
	if age.Valid {
		a := int(age.Int64)
		u.Age = &a
	}
	return &u, nil
}

const userCols = `id, username, name, role, parent_id, age, total_points, image_url, created_at`

func (s *UserStore) CreateParent(in model.NewParent) (*model.User, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO users (username, name, role) VALUES (?, ?, ?)`,
		in.Username, in.Name, model.RoleParent,
	)
	if err != nil {
		return nil, fmt.Errorf("insert parent: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) CreateChild(in model.NewChild) (*model.User, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	if err := s.requireParent(in.ParentID); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO users (username, name, role, parent_id, age, image_url) VALUES (?, ?, ?, ?, ?, ?)`,
		in.Username, in.Name, model.RoleChild, in.ParentID, in.Age, in.ImageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) requireParent(id int64) error {
	var role model.Role
	err := s.db.QueryRow(`SELECT role FROM users WHERE id = ?`, id).Scan(&role)
	if err == sql.ErrNoRows || (err == nil && role != model.RoleParent) {
		return fmt.Errorf("parent %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get parent role: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// ListParents returns every parent account, oldest first.
func (s *UserStore) ListParents() ([]model.User, error) {
	return s.list(`SELECT `+userCols+` FROM users WHERE role = ? ORDER BY id ASC`, model.RoleParent)
}

// ListChildren returns a parent's children ordered by name.
func (s *UserStore) ListChildren(parentID int64) ([]model.User, error) {
	return s.list(
		`SELECT `+userCols+` FROM users WHERE role = ? AND parent_id = ? ORDER BY name ASC, id ASC`,
		model.RoleChild, parentID,
	)
}

func (s *UserStore) list(query string, args ...any) ([]model.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) UpdateChild(id int64, in model.NewChild) (*model.User, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}

	res, err := s.db.Exec(
		`UPDATE users SET username = ?, name = ?, age = ?, image_url = ? WHERE id = ? AND role = ? AND parent_id = ?`,
		in.Username, in.Name, in.Age, in.ImageURL, id, model.RoleChild, in.ParentID,
	)
	if err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	if err := requireRow(res, "child", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *UserStore) DeleteChild(parentID, id int64) error {
	res, err := s.db.Exec(
		`DELETE FROM users WHERE id = ? AND role = ? AND parent_id = ?`,
		id, model.RoleChild, parentID,
	)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return requireRow(res, "child", id)
}

// requireRow turns a write that matched nothing into ErrNotFound. Owner-scoped
// writes land here when the row belongs to another parent.
func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, model.ErrNotFound)
	}
	return nil
}
