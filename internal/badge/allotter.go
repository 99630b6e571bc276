package badge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/chorechart/internal/model"
)

// Users lists the accounts an evaluation run walks over.
type Users interface {
	ListParents() ([]model.User, error)
	ListChildren(parentID int64) ([]model.User, error)
}

// Activities supplies a child's full history.
type Activities interface {
	ListByChild(childID int64) ([]model.Activity, error)
}

// Badges supplies the catalog and records awards.
type Badges interface {
	ListByParent(parentID int64) ([]model.Badge, error)
	HeldBadgeIDs(childID int64) (map[int64]bool, error)
	Award(childID, badgeID int64, earnedAt time.Time) (bool, error)
}

// Notifier is told about every badge that was newly recorded.
type Notifier interface {
	BadgeEarned(ctx context.Context, child model.User, badge model.Badge)
}

// Options tunes an Allotter. The zero value evaluates one child at a time in UTC.
type Options struct {
	Concurrency int
	Location    *time.Location
	Notifier    Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// Allotter runs badge evaluation for a parent's children and persists the awards.
type Allotter struct {
	users      Users
	activities Activities
	badges     Badges
	notifier   Notifier
	loc        *time.Location
	limit      int
	now        func() time.Time
	logger     *slog.Logger
}

func NewAllotter(users Users, activities Activities, badges Badges, opts Options) *Allotter {
	a := &Allotter{
		users:      users,
		activities: activities,
		badges:     badges,
		notifier:   opts.Notifier,
		loc:        opts.Location,
		limit:      opts.Concurrency,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.limit < 1 {
		a.limit = 1
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "allotter")
	return a
}

// Result summarises one evaluation run for a parent.
type Result struct {
	RunID     string
	ParentID  int64
	Children  int
	Awarded   []model.Award
	Conflicts int
	// Failed maps child IDs to the error that stopped their evaluation.
	Failed map[int64]error
}

// Allot evaluates every child of the parent against the parent's badge catalog
// and records new awards. Awards that lose a race with a concurrent run are
// counted as conflicts and skipped. A failure for one child is recorded in
// Result.Failed and does not stop the others. The returned error is non-nil only
// when the catalog or children cannot be loaded, or ctx is cancelled.
func (a *Allotter) Allot(ctx context.Context, parentID int64) (*Result, error) {
	res := &Result{
		RunID:    uuid.NewString(),
		ParentID: parentID,
		Failed:   make(map[int64]error),
	}
	logger := a.logger.With("run_id", res.RunID, "parent_id", parentID)

	catalog, err := a.badges.ListByParent(parentID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	children, err := a.users.ListChildren(parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	res.Children = len(children)

	if len(catalog) == 0 || len(children) == 0 {
		logger.Debug("nothing to evaluate", "badges", len(catalog), "children", len(children))
		return res, nil
	}

	byID := make(map[int64]model.Badge, len(catalog))
	for _, b := range catalog {
		byID[b.ID] = b
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)

	for _, child := range children {
		child := child
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			awarded, conflicts, err := a.allotChild(gctx, logger, child, catalog, byID)

			mu.Lock()
			defer mu.Unlock()
			res.Awarded = append(res.Awarded, awarded...)
			res.Conflicts += conflicts
			if err != nil {
				res.Failed[child.ID] = err
				logger.Error("child evaluation failed", "child_id", child.ID, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	logger.Info("badge evaluation finished",
		"children", res.Children,
		"awarded", len(res.Awarded),
		"conflicts", res.Conflicts,
		"failed", len(res.Failed),
	)
	return res, nil
}

func (a *Allotter) allotChild(ctx context.Context, logger *slog.Logger, child model.User, catalog []model.Badge, byID map[int64]model.Badge) ([]model.Award, int, error) {
	history, err := a.activities.ListByChild(child.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	held, err := a.badges.HeldBadgeIDs(child.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("list held badges: %w", err)
	}

	// Calendar days are cut in the configured timezone.
	local := make([]model.Activity, len(history))
	for i, act := range history {
		act.Date = act.Date.In(a.loc)
		local[i] = act
	}

	awards, err := Evaluate(child.ID, local, catalog, func(_, badgeID int64) bool { return held[badgeID] })
	if err != nil {
		return nil, 0, err
	}

	var recorded []model.Award
	var conflicts int
	for _, aw := range awards {
		if err := ctx.Err(); err != nil {
			return recorded, conflicts, err
		}
		inserted, err := a.badges.Award(aw.ChildID, aw.BadgeID, a.now())
		if err != nil {
			return recorded, conflicts, fmt.Errorf("award badge %d: %w", aw.BadgeID, err)
		}
		if !inserted {
			conflicts++
			logger.Info("badge already recorded, skipping", "child_id", aw.ChildID, "badge_id", aw.BadgeID)
			continue
		}
		recorded = append(recorded, aw)
		logger.Info("badge awarded", "child_id", aw.ChildID, "badge_id", aw.BadgeID, "badge", byID[aw.BadgeID].Name)
		if a.notifier != nil {
			a.notifier.BadgeEarned(ctx, child, byID[aw.BadgeID])
		}
	}
	return recorded, conflicts, nil
}

// AllotAll runs Allot for every parent. Failures for one parent are logged and
// joined into the returned error; the remaining parents still run.
func (a *Allotter) AllotAll(ctx context.Context) ([]*Result, error) {
	parents, err := a.users.ListParents()
	if err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}

	var results []*Result
	var errs []error
	for _, p := range parents {
		res, err := a.Allot(ctx, p.ID)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			a.logger.Error("parent evaluation failed", "parent_id", p.ID, "error", err)
			errs = append(errs, fmt.Errorf("parent %d: %w", p.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
