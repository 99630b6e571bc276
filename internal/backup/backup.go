package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/chorechart/internal/database"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/store"
)

// ErrDisabled is returned when S3 credentials or the passphrase are not configured.
var ErrDisabled = errors.New("backup not configured")

const uploadRetries = 3

type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager snapshots the database, encrypts it and ships it to object storage.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger

	newBackOff func() backoff.BackOff
	now        func() time.Time
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger.With("component", "backup"),
		status:  Status{State: StateDisabled},
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		now: time.Now,
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether backups can run.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// fail marks the record and manager as failed and returns err wrapped with op.
func (m *Manager) fail(id int64, op string, err error) error {
	if uerr := m.backups.UpdateStatus(id, model.BackupStatusFailed, err.Error()); uerr != nil {
		m.logger.Error("mark backup failed", "backup_id", id, "error", uerr)
	}
	m.setStatus(Status{State: StateError, Error: err.Error()})
	m.logger.Error("backup failed", "backup_id", id, "step", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// RunNow takes an encrypted snapshot and uploads it. It returns the backup record id.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return 0, ErrDisabled
	}

	m.setStatus(Status{State: StateRunning})

	filename := fmt.Sprintf("chorechart-%s.db.enc", m.now().UTC().Format("20060102T150405Z"))
	key := "backups/" + filename

	version, err := database.Version(m.db)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	record, err := m.backups.Create(filename, key, version)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("create backup record: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "chorechart-backup-")
	if err != nil {
		return 0, m.fail(record.ID, "create temp dir", err)
	}
	defer os.RemoveAll(tmpDir)
	dbCopy := filepath.Join(tmpDir, "snapshot.db")
	encFile := dbCopy + ".enc"

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return 0, m.fail(record.ID, "wal checkpoint", err)
	}
	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return 0, m.fail(record.ID, "copy database", err)
	}
	size, err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase)
	if err != nil {
		return 0, m.fail(record.ID, "encrypt", err)
	}

	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return 0, m.fail(record.ID, "mark uploading", err)
	}
	if err := m.upload(ctx, client, bucket, key, encFile, size); err != nil {
		return 0, m.fail(record.ID, "upload to s3", err)
	}

	if err := m.backups.UpdateCompleted(record.ID, size); err != nil {
		return 0, m.fail(record.ID, "mark completed", err)
	}

	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup completed", "backup_id", record.ID, "key", key, "size_bytes", size)
	return record.ID, nil
}

func (m *Manager) upload(ctx context.Context, client s3Client, bucket, key, path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	attempt := 0
	op := func() error {
		attempt++
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			m.logger.Warn("upload attempt failed", "key", key, "attempt", attempt, "error", err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(m.newBackOff(), uploadRetries), ctx)
	return backoff.Retry(op, b)
}

// Restore downloads backupID, decrypts it and writes the verified database to dstPath.
// The live database is never touched; swapping files is left to the operator.
func (m *Manager) Restore(ctx context.Context, backupID int64, dstPath string) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return ErrDisabled
	}

	record, err := m.backups.GetByID(backupID)
	if err != nil {
		return fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return fmt.Errorf("backup %d: %w", backupID, model.ErrNotFound)
	}
	if record.Status != model.BackupStatusCompleted {
		return fmt.Errorf("backup %d is %s, not completed", backupID, record.Status)
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read backup body: %w", err)
	}
	plaintext, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}
	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}

	if err := checkIntegrity(ctx, dstPath); err != nil {
		os.Remove(dstPath)
		return err
	}
	m.logger.Info("backup restored", "backup_id", backupID, "path", dstPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// List returns the most recent backup records.
func (m *Manager) List(limit int) ([]model.Backup, error) {
	return m.backups.List(limit)
}

// Cleanup removes records and objects older than retentionDays and returns how many were removed.
// A non-positive retention falls back to the configured value.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	if retentionDays <= 0 {
		retentionDays = m.cfg.RetentionDays
	}
	m.mu.RUnlock()
	if client == nil {
		return 0, nil
	}
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}

	before := m.now().UTC().AddDate(0, 0, -retentionDays)
	keys, err := m.backups.DeleteOlderThan(before)
	if err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete s3 object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("old backups removed", "count", len(keys), "before", before)
	}
	return len(keys), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
