package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechart/internal/badge"
	"github.com/dukerupert/chorechart/internal/database"
	"github.com/dukerupert/chorechart/internal/jobs"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/push"
	"github.com/dukerupert/chorechart/internal/store"
)

const shutdownTimeout = 30 * time.Second

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := database.Version(a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at version %d\n", a.cfg.DBPath, v)
			return nil
		},
	}
}

func allotCmd(a *app) *cobra.Command {
	var parentID int64
	var all bool

	cmd := &cobra.Command{
		Use:   "allot",
		Short: "Evaluate streak badges and record new awards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			allotter := a.allotter()

			var results []*badge.Result
			var runErr error
			switch {
			case all:
				results, runErr = allotter.AllotAll(cmd.Context())
			case parentID > 0:
				var res *badge.Result
				res, runErr = allotter.Allot(cmd.Context(), parentID)
				if res != nil {
					results = append(results, res)
				}
			default:
				return errors.New("pass --parent ID or --all")
			}

			type row struct {
				RunID    string `json:"run_id"`
				ParentID int64  `json:"parent_id"`
				ChildID  int64  `json:"child_id"`
				BadgeID  int64  `json:"badge_id"`
			}
			var rows []row
			for _, r := range results {
				for _, aw := range r.Awarded {
					rows = append(rows, row{r.RunID, r.ParentID, aw.ChildID, aw.BadgeID})
				}
				for childID, err := range r.Failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "child %d: %v\n", childID, err)
				}
			}
			if err := a.render(cmd, rows, []string{"RUN", "PARENT", "CHILD", "BADGE"}, func(add func(...any)) {
				for _, r := range rows {
					add(r.RunID, r.ParentID, r.ChildID, r.BadgeID)
				}
			}); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().Int64Var(&parentID, "parent", 0, "parent user id")
	cmd.Flags().BoolVar(&all, "all", false, "evaluate every parent")
	cmd.MarkFlagsMutuallyExclusive("parent", "all")
	return cmd
}

func serveJobsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-jobs",
		Short: "Run the nightly allot and backup jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var backups jobs.Backuper
			if a.cfg.BackupEnabled() {
				backups = a.backupManager()
			} else {
				a.logger.Info("backups disabled: S3 credentials or passphrase missing")
			}

			sched, err := jobs.New(jobs.Config{
				Location:       a.cfg.Location(),
				AllotSchedule:  a.cfg.AllotSchedule,
				BackupSchedule: a.cfg.BackupSchedule,
				RetentionDays:  a.cfg.BackupRetentionDays,
			}, a.allotter(), backups, a.logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sched.Start(ctx)
			for name, next := range sched.Jobs() {
				a.logger.Info("job scheduled", "job", name, "next", next)
			}
			<-ctx.Done()

			a.logger.Info("shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return sched.Stop(stopCtx)
		},
	}
}

func reportCmd(a *app) *cobra.Command {
	var f store.ReportFilter

	cmd := &cobra.Command{
		Use:       "report {rules|trend|badges|redemptions}",
		Short:     "Print a dashboard report for a parent",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"rules", "trend", "badges", "redemptions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "rules":
				rows, err := a.reports.TopRules(f)
				if err != nil {
					return err
				}
				return a.render(cmd, rows, []string{"RULE", "COUNT", "POINTS"}, func(add func(...any)) {
					for _, r := range rows {
						add(r.Description, r.Count, r.Points)
					}
				})
			case "trend":
				rows, err := a.reports.PointsTrend(f)
				if err != nil {
					return err
				}
				return a.render(cmd, rows, []string{"DAY", "POINTS"}, func(add func(...any)) {
					for _, r := range rows {
						add(r.Day, r.Points)
					}
				})
			case "badges":
				rows, err := a.reports.TopBadges(f)
				if err != nil {
					return err
				}
				return a.render(cmd, rows, []string{"BADGE", "EARNED"}, func(add func(...any)) {
					for _, r := range rows {
						add(r.Name, r.Count)
					}
				})
			default:
				rows, err := a.reports.Redemptions(f)
				if err != nil {
					return err
				}
				return a.render(cmd, rows, []string{"ID", "CHILD", "REWARD", "COST", "REQUESTED", "STATUS"}, func(add func(...any)) {
					for _, r := range rows {
						add(r.ID, r.ChildName, r.RewardName, r.PointsCost, r.RequestDate, string(r.Status))
					}
				})
			}
		},
	}
	cmd.Flags().Int64Var(&f.ParentID, "parent", 0, "parent user id")
	cmd.Flags().StringVar(&f.ChildName, "child", "", "limit to one child by name")
	_ = cmd.MarkFlagRequired("parent")
	return cmd
}

func backupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted off-site database backups",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Take a backup now and apply retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := a.backupManager()
			id, err := m.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			removed, err := m.Cleanup(cmd.Context(), 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d completed, %d expired backups removed\n", id, removed)
			return nil
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := a.backups.List(limit)
			if err != nil {
				return err
			}
			return a.render(cmd, rows, []string{"ID", "FILE", "SCHEMA", "STATUS", "SIZE", "STARTED", "COMPLETED", "ERROR"}, func(add func(...any)) {
				for _, b := range rows {
					add(b.ID, b.Filename, b.SchemaVersion, string(b.Status), b.SizeBytes, b.StartedAt, b.CompletedAt, b.ErrorMessage)
				}
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows")

	var id int64
	var out string
	restore := &cobra.Command{
		Use:   "restore",
		Short: "Download, decrypt and verify a backup into a new file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.backupManager().Restore(cmd.Context(), id, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d restored to %s\n", id, out)
			return nil
		},
	}
	restore.Flags().Int64Var(&id, "id", 0, "backup id")
	restore.Flags().StringVar(&out, "out", "", "path of the restored database file")
	_ = restore.MarkFlagRequired("id")
	_ = restore.MarkFlagRequired("out")

	cmd.AddCommand(run, list, restore)
	return cmd
}

func pushCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Web push keys and subscriptions",
	}

	keys := &cobra.Command{
		Use:         "vapid-keys",
		Short:       "Generate a VAPID key pair",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noDB: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := push.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CHORECHART_VAPID_PUBLIC_KEY=%s\nCHORECHART_VAPID_PRIVATE_KEY=%s\n", pub, priv)
			return nil
		},
	}

	var userID int64
	var endpoint, p256dh, auth, device string
	subscribe := &cobra.Command{
		Use:   "subscribe",
		Short: "Register a browser push subscription for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.users.GetByID(userID)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %d: %w", userID, model.ErrNotFound)
			}
			sub, err := a.pushSubs.Subscribe(userID, endpoint, p256dh, auth, device)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subscription %d registered for %s\n", sub.ID, u.Username)
			return nil
		},
	}
	subscribe.Flags().Int64Var(&userID, "user", 0, "user id")
	subscribe.Flags().StringVar(&endpoint, "endpoint", "", "push service endpoint URL")
	subscribe.Flags().StringVar(&p256dh, "p256dh", "", "client public key")
	subscribe.Flags().StringVar(&auth, "auth", "", "client auth secret")
	subscribe.Flags().StringVar(&device, "device", "", "device label")
	for _, name := range []string{"user", "endpoint", "p256dh", "auth"} {
		_ = subscribe.MarkFlagRequired(name)
	}

	cmd.AddCommand(keys, subscribe)
	return cmd
}
