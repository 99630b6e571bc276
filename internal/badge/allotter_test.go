package badge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorechart/internal/database"
	"github.com/dukerupert/chorechart/internal/logging"
	"github.com/dukerupert/chorechart/internal/model"
	"github.com/dukerupert/chorechart/internal/store"
)

type fakeUsers struct {
	parents  []model.User
	children map[int64][]model.User
	err      error
}

func (f *fakeUsers) ListParents() ([]model.User, error) { return f.parents, nil }

func (f *fakeUsers) ListChildren(parentID int64) ([]model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.children[parentID], nil
}

type fakeActivities struct {
	byChild map[int64][]model.Activity
	err     map[int64]error
}

func (f *fakeActivities) ListByChild(childID int64) ([]model.Activity, error) {
	if err := f.err[childID]; err != nil {
		return nil, err
	}
	return f.byChild[childID], nil
}

// fakeBadges mirrors the unique (child, badge) constraint of the real table.
type fakeBadges struct {
	mu        sync.Mutex
	catalog   map[int64][]model.Badge
	held      map[int64]map[int64]bool
	stale     bool
	awardFunc func(childID, badgeID int64) (bool, error)
	awards    []model.Award
}

func (f *fakeBadges) ListByParent(parentID int64) ([]model.Badge, error) {
	return f.catalog[parentID], nil
}

func (f *fakeBadges) HeldBadgeIDs(childID int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]bool)
	if f.stale {
		return out, nil
	}
	for id := range f.held[childID] {
		out[id] = true
	}
	return out, nil
}

func (f *fakeBadges) Award(childID, badgeID int64, _ time.Time) (bool, error) {
	if f.awardFunc != nil {
		return f.awardFunc(childID, badgeID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[childID][badgeID] {
		return false, nil
	}
	if f.held[childID] == nil {
		f.held[childID] = make(map[int64]bool)
	}
	f.held[childID][badgeID] = true
	f.awards = append(f.awards, model.Award{ChildID: childID, BadgeID: badgeID})
	return true, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) BadgeEarned(_ context.Context, child model.User, b model.Badge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, child.Name+":"+b.Name)
}

func family() (*fakeUsers, *fakeActivities, *fakeBadges) {
	users := &fakeUsers{
		parents: []model.User{{ID: 1, Name: "Mom", Role: model.RoleParent}},
		children: map[int64][]model.User{
			1: {
				{ID: 10, Name: "Ava", Role: model.RoleChild},
				{ID: 11, Name: "Ben", Role: model.RoleChild},
			},
		},
	}
	acts := &fakeActivities{
		byChild: map[int64][]model.Activity{
			10: run("Homework", day(2024, 1, 1), 5),
			11: run("Homework", day(2024, 1, 1), 2),
		},
	}
	badges := &fakeBadges{
		catalog: map[int64][]model.Badge{
			1: {
				{ID: 100, ParentID: 1, Name: "Scholar", RequiredDays: 5, ActivityType: "Homework"},
				{ID: 101, ParentID: 1, Name: "Starter", RequiredDays: 2, ActivityType: "homework"},
			},
		},
		held: map[int64]map[int64]bool{},
	}
	return users, acts, badges
}

func TestAllotAwardsAndNotifies(t *testing.T) {
	users, acts, badges := family()
	notifier := &recordingNotifier{}
	a := NewAllotter(users, acts, badges, Options{Concurrency: 2, Notifier: notifier, Logger: logging.Discard()})

	res, err := a.Allot(context.Background(), 1)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Children)
	assert.ElementsMatch(t, []model.Award{
		{ChildID: 10, BadgeID: 100},
		{ChildID: 10, BadgeID: 101},
		{ChildID: 11, BadgeID: 101},
	}, res.Awarded)
	assert.Zero(t, res.Conflicts)
	assert.Empty(t, res.Failed)
	assert.ElementsMatch(t, []string{"Ava:Scholar", "Ava:Starter", "Ben:Starter"}, notifier.events)
}

func TestAllotIsIdempotent(t *testing.T) {
	users, acts, badges := family()
	a := NewAllotter(users, acts, badges, Options{Logger: logging.Discard()})

	first, err := a.Allot(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first.Awarded, 3)

	second, err := a.Allot(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, second.Awarded)
	assert.Zero(t, second.Conflicts)
	assert.Len(t, badges.awards, 3)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestAllotStaleSnapshotCountsConflicts(t *testing.T) {
	users, acts, badges := family()
	badges.held[10] = map[int64]bool{100: true}
	badges.stale = true
	notifier := &recordingNotifier{}
	a := NewAllotter(users, acts, badges, Options{Notifier: notifier, Logger: logging.Discard()})

	res, err := a.Allot(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Conflicts)
	assert.NotContains(t, res.Awarded, model.Award{ChildID: 10, BadgeID: 100})
	assert.NotContains(t, notifier.events, "Ava:Scholar")
}

func TestAllotMalformedDateIsolatedToChild(t *testing.T) {
	users, acts, badges := family()
	acts.byChild[11] = append(acts.byChild[11], model.Activity{ID: 99, ChildID: 11, Description: "Homework"})
	a := NewAllotter(users, acts, badges, Options{Logger: logging.Discard()})

	res, err := a.Allot(context.Background(), 1)
	require.NoError(t, err)

	require.Contains(t, res.Failed, int64(11))
	assert.ErrorIs(t, res.Failed[11], ErrMalformedDate)
	assert.Len(t, res.Awarded, 2)
}

func TestAllotStoreErrorIsolatedToChild(t *testing.T) {
	users, acts, badges := family()
	boom := errors.New("disk I/O error")
	badges.awardFunc = func(childID, badgeID int64) (bool, error) {
		if childID == 10 {
			return false, boom
		}
		return true, nil
	}
	a := NewAllotter(users, acts, badges, Options{Logger: logging.Discard()})

	res, err := a.Allot(context.Background(), 1)
	require.NoError(t, err)

	assert.ErrorIs(t, res.Failed[10], boom)
	assert.Equal(t, []model.Award{{ChildID: 11, BadgeID: 101}}, res.Awarded)
}

func TestAllotLoadErrorAborts(t *testing.T) {
	users, acts, badges := family()
	users.err = errors.New("database is locked")
	a := NewAllotter(users, acts, badges, Options{Logger: logging.Discard()})

	_, err := a.Allot(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list children")
}

func TestAllotCancelledContext(t *testing.T) {
	users, acts, badges := family()
	a := NewAllotter(users, acts, badges, Options{Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Allot(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, badges.awards)
}

func TestAllotUsesLocationForDays(t *testing.T) {
	users, acts, badges := family()
	// Two logs 20h apart straddle UTC midnight but share one day in UTC-7.
	loc := time.FixedZone("UTC-7", -7*3600)
	acts.byChild[10] = logged("Reading",
		time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC),
	)
	acts.byChild[11] = nil
	badges.catalog[1] = []model.Badge{{ID: 200, Name: "Reader", RequiredDays: 2, ActivityType: "Reading"}}

	utc, err := NewAllotter(users, acts, badges, Options{Logger: logging.Discard()}).Allot(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, utc.Awarded, 1, "two UTC days should award")

	badges.held = map[int64]map[int64]bool{}
	local, err := NewAllotter(users, acts, badges, Options{Location: loc, Logger: logging.Discard()}).Allot(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, local.Awarded, "one local day should not award")
}

func TestAllotAllCoversEveryParent(t *testing.T) {
	users, acts, badges := family()
	users.parents = append(users.parents, model.User{ID: 2, Name: "Dad", Role: model.RoleParent})
	users.children[2] = []model.User{{ID: 20, Name: "Cal", Role: model.RoleChild}}
	acts.byChild[20] = run("Dishes", day(2024, 2, 1), 3)
	badges.catalog[2] = []model.Badge{{ID: 300, ParentID: 2, Name: "Dishwasher", RequiredDays: 3, ActivityType: "Dishes"}}

	a := NewAllotter(users, acts, badges, Options{Concurrency: 4, Logger: logging.Discard()})
	results, err := a.AllotAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[1].Awarded, model.Award{ChildID: 20, BadgeID: 300})
}

func TestAllotAgainstDatabase(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	us, as, bs := store.NewUserStore(db), store.NewActivityStore(db), store.NewBadgeStore(db)
	mom, err := us.CreateParent(model.NewParent{Username: "mom", Name: "Mom"})
	require.NoError(t, err)
	ava, err := us.CreateChild(model.NewChild{ParentID: mom.ID, Username: "ava", Name: "Ava"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := as.Create(model.NewActivity{ChildID: ava.ID, Description: "homework", Points: 5, Date: day(2024, 1, 1+i)})
		require.NoError(t, err)
	}
	scholar, err := bs.Create(model.NewBadge{ParentID: mom.ID, Name: "Scholar", RequiredDays: 5, ActivityType: "Homework"})
	require.NoError(t, err)
	_, err = bs.Create(model.NewBadge{ParentID: mom.ID, Name: "Marathon", RequiredDays: 6, ActivityType: "Homework"})
	require.NoError(t, err)

	fixed := time.Date(2024, 1, 6, 7, 0, 0, 0, time.UTC)
	a := NewAllotter(us, as, bs, Options{Concurrency: 2, Logger: logging.Discard(), Now: func() time.Time { return fixed }})

	// Two overlapping runs must still leave exactly one row.
	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Allot(context.Background(), mom.ID)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		require.NotNil(t, r)
		total += len(r.Awarded)
	}
	assert.Equal(t, 1, total)

	earned, err := bs.ListEarned(ava.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, scholar.ID, earned[0].ID)
	assert.True(t, earned[0].DateEarned.Equal(fixed))
}
