package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechart/internal/backup"
	"github.com/dukerupert/chorechart/internal/badge"
	"github.com/dukerupert/chorechart/internal/config"
	"github.com/dukerupert/chorechart/internal/database"
	"github.com/dukerupert/chorechart/internal/logging"
	"github.com/dukerupert/chorechart/internal/push"
	"github.com/dukerupert/chorechart/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand shares once the root has set up.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	json   bool

	users       *store.UserStore
	rules       *store.RuleStore
	activities  *store.ActivityStore
	rewards     *store.RewardStore
	redemptions *store.RedemptionStore
	badges      *store.BadgeStore
	reports     *store.ReportStore
	pushSubs    *store.PushStore
	backups     *store.BackupStore
}

// noDB marks commands that run without opening the database.
const noDB = "no-db"

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "chorechart",
		Short:        "Household chores, points, rewards and streak badges",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	}
	root.PersistentFlags().BoolVar(&a.json, "json", false, "print results as JSON")

	root.AddCommand(
		migrateCmd(a),
		allotCmd(a),
		serveJobsCmd(a),
		reportCmd(a),
		backupCmd(a),
		pushCmd(a),
		parentCmd(a),
		childCmd(a),
		ruleCmd(a),
		activityCmd(a),
		badgeCmd(a),
		rewardCmd(a),
		redeemCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if _, skip := cmd.Annotations[noDB]; skip {
		return nil
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	a.db = db
	a.users = store.NewUserStore(db)
	a.rules = store.NewRuleStore(db)
	a.activities = store.NewActivityStore(db)
	a.rewards = store.NewRewardStore(db)
	a.redemptions = store.NewRedemptionStore(db)
	a.badges = store.NewBadgeStore(db)
	a.reports = store.NewReportStore(db)
	a.pushSubs = store.NewPushStore(db)
	a.backups = store.NewBackupStore(db)
	return nil
}

// notifier is nil when VAPID keys are not configured.
func (a *app) notifier() *push.Notifier {
	if !a.cfg.PushEnabled() {
		return nil
	}
	svc := push.NewService(a.cfg.VAPIDPublicKey, a.cfg.VAPIDPrivateKey, a.cfg.VAPIDSubscriber)
	return push.NewNotifier(svc, a.pushSubs, a.logger)
}

func (a *app) allotter() *badge.Allotter {
	opts := badge.Options{
		Concurrency: a.cfg.AllotConcurrency,
		Location:    a.cfg.Location(),
		Logger:      a.logger,
	}
	if n := a.notifier(); n != nil {
		opts.Notifier = n
	}
	return badge.NewAllotter(a.users, a.activities, a.badges, opts)
}

func (a *app) backupManager() *backup.Manager {
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  a.cfg.S3Endpoint,
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
		},
		DBPath:        a.cfg.DBPath,
		Passphrase:    a.cfg.BackupPassphrase,
		RetentionDays: a.cfg.BackupRetentionDays,
	}, a.db, a.backups, a.logger)
}
