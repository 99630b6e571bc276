package database

import (
	"path/filepath"
	"testing"
)

func TestOpenMemoryRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"users", "rules", "activities", "rewards", "redemption_requests", "badges", "child_badges", "push_subscriptions", "backups"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	v, err := Version(db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 4 {
		t.Errorf("version = %d, want 4", v)
	}
}

func TestOpenFileIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestChildBadgeUniqueness(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := db.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
	mustExec(`INSERT INTO users (id, username, name, role) VALUES (1, 'mom', 'Mom', 'parent')`)
	mustExec(`INSERT INTO users (id, username, name, role, parent_id) VALUES (2, 'kid', 'Kid', 'child', 1)`)
	mustExec(`INSERT INTO badges (id, parent_id, name, required_days, activity_type) VALUES (1, 1, 'Bookworm', 3, 'Reading')`)
	mustExec(`INSERT INTO child_badges (child_id, badge_id) VALUES (2, 1)`)

	if _, err := db.Exec(`INSERT INTO child_badges (child_id, badge_id) VALUES (2, 1)`); err == nil {
		t.Error("expected unique constraint violation on duplicate award")
	}
}
