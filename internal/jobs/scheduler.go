// Package jobs runs the recurring background work: nightly badge allotment
// and encrypted database backups.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/chorechart/internal/badge"
)

type Allotter interface {
	AllotAll(ctx context.Context) ([]*badge.Result, error)
}

type Backuper interface {
	RunNow(ctx context.Context) (int64, error)
	Cleanup(ctx context.Context, retentionDays int) (int, error)
}

type Config struct {
	Location       *time.Location
	AllotSchedule  string
	BackupSchedule string
	RetentionDays  int
}

// Scheduler wraps a cron runner. Jobs never overlap with themselves.
type Scheduler struct {
	cron     *cron.Cron
	allotter Allotter
	backups  Backuper
	cfg      Config
	logger   *slog.Logger
	entries  map[string]cron.EntryID
	ctx      context.Context
}

// New registers the allot job and, when backups is non-nil, the backup job.
func New(cfg Config, allotter Allotter, backups Backuper, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	logger = logger.With("component", "jobs")
	cl := cronLogger{logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		allotter: allotter,
		backups:  backups,
		cfg:      cfg,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
		ctx:      context.Background(),
	}

	if err := s.add("allot", cfg.AllotSchedule, s.RunAllot); err != nil {
		return nil, err
	}
	if backups != nil {
		if err := s.add("backup", cfg.BackupSchedule, s.RunBackup); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, run func(context.Context)) error {
	id, err := s.cron.AddFunc(spec, func() { run(s.ctx) })
	if err != nil {
		return fmt.Errorf("schedule %s job %q: %w", name, spec, err)
	}
	s.entries[name] = id
	return nil
}

// Jobs returns the registered job names mapped to their next run time.
// Next is zero until the scheduler has started.
func (s *Scheduler) Jobs() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Start runs the cron loop in the background. ctx is handed to every job run.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "location", s.cfg.Location.String(), "jobs", len(s.entries))
}

// Stop prevents new runs and waits for running jobs, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// RunAllot is the body of the nightly allot job.
func (s *Scheduler) RunAllot(ctx context.Context) {
	start := time.Now()
	results, err := s.allotter.AllotAll(ctx)

	var awarded, failed int
	for _, r := range results {
		awarded += len(r.Awarded)
		failed += len(r.Failed)
	}
	if err != nil {
		s.logger.Error("allot job failed", "error", err, "parents", len(results), "awarded", awarded)
		return
	}
	s.logger.Info("allot job finished",
		"parents", len(results),
		"awarded", awarded,
		"failed_children", failed,
		"duration", time.Since(start),
	)
}

// RunBackup is the body of the backup job. Retention cleanup runs even when the backup fails.
func (s *Scheduler) RunBackup(ctx context.Context) {
	if id, err := s.backups.RunNow(ctx); err != nil {
		s.logger.Error("backup job failed", "error", err)
	} else {
		s.logger.Info("backup job finished", "backup_id", id)
	}

	if n, err := s.backups.Cleanup(ctx, s.cfg.RetentionDays); err != nil {
		s.logger.Error("backup cleanup failed", "error", err)
	} else if n > 0 {
		s.logger.Info("backup cleanup finished", "removed", n)
	}
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
