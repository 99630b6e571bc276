package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechart/internal/model"
)

func group(use, short string, subs ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(subs...)
	return cmd
}

func required(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		_ = cmd.MarkFlagRequired(n)
	}
}

func (a *app) printUsers(cmd *cobra.Command, users []model.User) error {
	return a.render(cmd, users, []string{"ID", "USERNAME", "NAME", "ROLE", "PARENT", "AGE", "POINTS"}, func(add func(...any)) {
		for _, u := range users {
			add(u.ID, u.Username, u.Name, string(u.Role), u.ParentID, u.Age, u.TotalPoints)
		}
	})
}

func parentCmd(a *app) *cobra.Command {
	var in model.NewParent
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a parent account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.users.CreateParent(in)
			if err != nil {
				return err
			}
			return a.printUsers(cmd, []model.User{*u})
		},
	}
	add.Flags().StringVar(&in.Username, "username", "", "login name")
	add.Flags().StringVar(&in.Name, "name", "", "display name")
	required(add, "username", "name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List parents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.users.ListParents()
			if err != nil {
				return err
			}
			return a.printUsers(cmd, users)
		},
	}
	return group("parent", "Manage parent accounts", add, list)
}

func childCmd(a *app) *cobra.Command {
	var in model.NewChild
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a child account under a parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.users.CreateChild(in)
			if err != nil {
				return err
			}
			return a.printUsers(cmd, []model.User{*u})
		},
	}
	add.Flags().Int64Var(&in.ParentID, "parent", 0, "parent user id")
	add.Flags().StringVar(&in.Username, "username", "", "login name")
	add.Flags().StringVar(&in.Name, "name", "", "display name")
	add.Flags().IntVar(&in.Age, "age", 0, "age in years")
	add.Flags().StringVar(&in.ImageURL, "image", "", "avatar URL")
	required(add, "parent", "username", "name")

	var parentID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List a parent's children with their point totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.users.ListChildren(parentID)
			if err != nil {
				return err
			}
			return a.printUsers(cmd, users)
		},
	}
	list.Flags().Int64Var(&parentID, "parent", 0, "parent user id")
	required(list, "parent")

	return group("child", "Manage child accounts", add, list)
}

func ruleCmd(a *app) *cobra.Command {
	var in model.NewRule
	add := &cobra.Command{
		Use:   "add",
		Short: "Define a behaviour rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.rules.Create(in)
			if err != nil {
				return err
			}
			return a.printRules(cmd, []model.Rule{*r})
		},
	}
	add.Flags().Int64Var(&in.ParentID, "parent", 0, "parent user id")
	add.Flags().StringVar(&in.Name, "name", "", "rule name, also the activity type badges match on")
	add.Flags().StringVar(&in.Description, "description", "", "longer description")
	add.Flags().IntVar(&in.Points, "points", 0, "points awarded (negative to deduct)")
	required(add, "parent", "name", "points")

	var parentID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List a parent's rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := a.rules.ListByParent(parentID)
			if err != nil {
				return err
			}
			return a.printRules(cmd, rules)
		},
	}
	list.Flags().Int64Var(&parentID, "parent", 0, "parent user id")
	required(list, "parent")

	return group("rule", "Manage behaviour rules", add, list)
}

func (a *app) printRules(cmd *cobra.Command, rules []model.Rule) error {
	return a.render(cmd, rules, []string{"ID", "NAME", "POINTS", "DESCRIPTION"}, func(add func(...any)) {
		for _, r := range rules {
			add(r.ID, r.Name, r.Points, r.Description)
		}
	})
}

// parseDate accepts a calendar day in the configured timezone or a full RFC 3339 timestamp.
func (a *app) parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, a.cfg.Location()); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

func activityCmd(a *app) *cobra.Command {
	var in model.NewActivity
	var ruleID int64
	var date string
	log := &cobra.Command{
		Use:   "log",
		Short: "Record an activity for a child and adjust their points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ruleID > 0 {
				r, err := a.rules.GetByID(ruleID)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("rule %d: %w", ruleID, model.ErrNotFound)
				}
				in.Description = r.Name
				if in.Points == 0 {
					in.Points = r.Points
				}
			}
			t, err := a.parseDate(date)
			if err != nil {
				return err
			}
			in.Date = t

			act, err := a.activities.Create(in)
			if err != nil {
				return err
			}
			return a.printActivities(cmd, []model.Activity{*act})
		},
	}
	log.Flags().Int64Var(&in.ChildID, "child", 0, "child user id")
	log.Flags().Int64Var(&ruleID, "rule", 0, "take description and points from this rule")
	log.Flags().StringVar(&in.Description, "description", "", "what happened, usually a rule name")
	log.Flags().IntVar(&in.Points, "points", 0, "points to add (negative to deduct)")
	log.Flags().StringVar(&date, "date", "", "day (YYYY-MM-DD) or RFC 3339 timestamp, default now")
	required(log, "child")
	log.MarkFlagsOneRequired("rule", "description")

	var id int64
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove an activity and revert its points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.activities.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activity %d deleted\n", id)
			return nil
		},
	}
	del.Flags().Int64Var(&id, "id", 0, "activity id")
	required(del, "id")

	var childID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List a child's activity history, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acts, err := a.activities.ListByChild(childID)
			if err != nil {
				return err
			}
			return a.printActivities(cmd, acts)
		},
	}
	list.Flags().Int64Var(&childID, "child", 0, "child user id")
	required(list, "child")

	return group("activity", "Log and review activities", log, del, list)
}

func (a *app) printActivities(cmd *cobra.Command, acts []model.Activity) error {
	return a.render(cmd, acts, []string{"ID", "CHILD", "DESCRIPTION", "POINTS", "DATE"}, func(add func(...any)) {
		for _, act := range acts {
			add(act.ID, act.ChildID, act.Description, act.Points, act.Date.In(a.cfg.Location()))
		}
	})
}

func badgeCmd(a *app) *cobra.Command {
	var in model.NewBadge
	add := &cobra.Command{
		Use:   "add",
		Short: "Define a streak badge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.badges.Create(in)
			if err != nil {
				return err
			}
			return a.printBadges(cmd, []model.Badge{*b})
		},
	}
	add.Flags().Int64Var(&in.ParentID, "parent", 0, "parent user id")
	add.Flags().StringVar(&in.Name, "name", "", "badge name")
	add.Flags().StringVar(&in.Description, "description", "", "badge description")
	add.Flags().StringVar(&in.Icon, "icon", "", "short icon or emoji")
	add.Flags().IntVar(&in.RequiredDays, "days", 0, "consecutive days required")
	add.Flags().StringVar(&in.ActivityType, "activity", "", "rule name the streak is counted on")
	required(add, "parent", "name", "days", "activity")

	var parentID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List a parent's badge catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			badges, err := a.badges.ListByParent(parentID)
			if err != nil {
				return err
			}
			return a.printBadges(cmd, badges)
		},
	}
	list.Flags().Int64Var(&parentID, "parent", 0, "parent user id")
	required(list, "parent")

	var childID int64
	earned := &cobra.Command{
		Use:   "earned",
		Short: "List the badges a child holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			held, err := a.badges.ListEarned(childID)
			if err != nil {
				return err
			}
			return a.render(cmd, held, []string{"ID", "BADGE", "ICON", "DAYS", "ACTIVITY", "EARNED"}, func(add func(...any)) {
				for _, b := range held {
					add(b.ID, b.Name, b.Icon, b.RequiredDays, b.ActivityType, b.DateEarned)
				}
			})
		},
	}
	earned.Flags().Int64Var(&childID, "child", 0, "child user id")
	required(earned, "child")

	return group("badge", "Manage streak badges", add, list, earned)
}

func (a *app) printBadges(cmd *cobra.Command, badges []model.Badge) error {
	return a.render(cmd, badges, []string{"ID", "NAME", "ICON", "DAYS", "ACTIVITY"}, func(add func(...any)) {
		for _, b := range badges {
			add(b.ID, b.Name, b.Icon, b.RequiredDays, b.ActivityType)
		}
	})
}

func rewardCmd(a *app) *cobra.Command {
	var in model.NewReward
	add := &cobra.Command{
		Use:   "add",
		Short: "Define a reward children can redeem points for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.rewards.Create(in)
			if err != nil {
				return err
			}
			return a.printRewards(cmd, []model.Reward{*r})
		},
	}
	add.Flags().Int64Var(&in.CreatedBy, "parent", 0, "parent user id")
	add.Flags().StringVar(&in.Name, "name", "", "reward name")
	add.Flags().StringVar(&in.Description, "description", "", "reward description")
	add.Flags().IntVar(&in.PointsCost, "cost", 0, "points cost")
	add.Flags().StringVar(&in.ImageURL, "image", "", "image URL")
	add.Flags().BoolVar(&in.IsGlobal, "global", false, "visible to every family")
	required(add, "parent", "name", "cost")

	var parentID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List the rewards a parent's children can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rewards, err := a.rewards.ListForParent(parentID)
			if err != nil {
				return err
			}
			return a.printRewards(cmd, rewards)
		},
	}
	list.Flags().Int64Var(&parentID, "parent", 0, "parent user id")
	required(list, "parent")

	return group("reward", "Manage rewards", add, list)
}

func (a *app) printRewards(cmd *cobra.Command, rewards []model.Reward) error {
	return a.render(cmd, rewards, []string{"ID", "NAME", "COST", "GLOBAL", "DESCRIPTION"}, func(add func(...any)) {
		for _, r := range rewards {
			add(r.ID, r.Name, r.PointsCost, r.IsGlobal, r.Description)
		}
	})
}

func redeemCmd(a *app) *cobra.Command {
	var childID, rewardID int64
	request := &cobra.Command{
		Use:   "request",
		Short: "File a redemption request for a child",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.redemptions.Request(childID, rewardID)
			if err != nil {
				return err
			}
			return a.printRedemptions(cmd, []model.RedemptionRequest{*r})
		},
	}
	request.Flags().Int64Var(&childID, "child", 0, "child user id")
	request.Flags().Int64Var(&rewardID, "reward", 0, "reward id")
	required(request, "child", "reward")

	decide := func(use, short string, status model.RedemptionStatus) *cobra.Command {
		var id int64
		var note string
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, err := a.redemptions.Decide(id, status, note)
				if err != nil {
					return err
				}
				a.notifyDecision(cmd, r)
				return a.printRedemptions(cmd, []model.RedemptionRequest{*r})
			},
		}
		cmd.Flags().Int64Var(&id, "id", 0, "redemption request id")
		cmd.Flags().StringVar(&note, "note", "", "message for the child")
		required(cmd, "id")
		return cmd
	}

	var parentID, listChild int64
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List redemption requests for a parent or a child",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []model.RedemptionRequest
			var err error
			if listChild > 0 {
				rows, err = a.redemptions.ListByChild(listChild)
			} else {
				rows, err = a.redemptions.ListForParent(parentID, model.RedemptionStatus(status))
			}
			if err != nil {
				return err
			}
			return a.printRedemptions(cmd, rows)
		},
	}
	list.Flags().Int64Var(&parentID, "parent", 0, "parent user id")
	list.Flags().Int64Var(&listChild, "child", 0, "child user id")
	list.Flags().StringVar(&status, "status", "", "pending, approved or rejected")
	list.MarkFlagsOneRequired("parent", "child")
	list.MarkFlagsMutuallyExclusive("parent", "child")

	return group("redeem", "Request and decide reward redemptions",
		request,
		decide("approve", "Approve a request and deduct the reward cost", model.RedemptionApproved),
		decide("reject", "Reject a request", model.RedemptionRejected),
		list,
	)
}

// notifyDecision pushes the outcome to the child. Failures only get logged.
func (a *app) notifyDecision(cmd *cobra.Command, r *model.RedemptionRequest) {
	n := a.notifier()
	if n == nil {
		return
	}
	child, err := a.users.GetByID(r.ChildID)
	if err != nil || child == nil {
		a.logger.Warn("redemption notification skipped", "request_id", r.ID, "error", err)
		return
	}
	reward, err := a.rewards.GetByID(r.RewardID)
	if err != nil || reward == nil {
		a.logger.Warn("redemption notification skipped", "request_id", r.ID, "error", err)
		return
	}
	n.RedemptionDecided(cmd.Context(), *child, *reward, *r)
}

func (a *app) printRedemptions(cmd *cobra.Command, rows []model.RedemptionRequest) error {
	return a.render(cmd, rows, []string{"ID", "CHILD", "REWARD", "REQUESTED", "STATUS", "NOTE", "DECIDED"}, func(add func(...any)) {
		for _, r := range rows {
			add(r.ID, r.ChildID, r.RewardID, r.RequestDate, string(r.Status), r.Note, r.DecidedAt)
		}
	})
}
