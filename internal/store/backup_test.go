package store

import (
	"testing"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

func TestBackupLifecycle(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))

	b, err := bs.Create("backup-2024.db.enc", "backups/backup-2024.db.enc", 4)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}
	if b.StartedAt == nil {
		t.Error("expected started_at")
	}
	if b.SchemaVersion != 4 {
		t.Errorf("schema_version = %d, want 4", b.SchemaVersion)
	}

	if err := bs.UpdateStatus(b.ID, model.BackupStatusFailed, "disk full"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusFailed || got.ErrorMessage != "disk full" {
		t.Errorf("backup = %+v, want failed with message", got)
	}

	if err := bs.UpdateCompleted(b.ID, 4096); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	got, _ = bs.GetByID(b.ID)
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusCompleted)
	}
	if got.SizeBytes != 4096 {
		t.Errorf("size_bytes = %d, want 4096", got.SizeBytes)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at")
	}
}

func TestBackupListAndDeleteOlderThan(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))

	for _, name := range []string{"a", "b", "c"} {
		if _, err := bs.Create(name, "backups/"+name, 4); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	list, err := bs.List(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(list))
	}
	if list[0].Filename != "c" {
		t.Errorf("list[0].Filename = %q, want %q", list[0].Filename, "c")
	}

	keys, err := bs.DeleteOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("deleted keys = %v, want 3", keys)
	}
	list, _ = bs.List(10)
	if len(list) != 0 {
		t.Errorf("expected no backups left, got %d", len(list))
	}
}
