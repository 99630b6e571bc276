package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

type Backup struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	S3Key     string `json:"s3_key"`
	SizeBytes int64  `json:"size_bytes"`
	// SchemaVersion is the migration version of the snapshot. A binary with
	// fewer migrations cannot open it.
	SchemaVersion int64        `json:"schema_version"`
	Status        BackupStatus `json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
