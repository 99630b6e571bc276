package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

func setupActivityTestDB(t *testing.T) (*ActivityStore, *UserStore, *model.User, *model.User) {
	t.Helper()
	db := setupTestDB(t)
	us := NewUserStore(db)
	mom := mustParent(t, us, "mom")
	ava := mustChild(t, us, mom.ID, "ava", "Ava")
	return NewActivityStore(db), us, mom, ava
}

func points(t *testing.T, us *UserStore, id int64) int {
	t.Helper()
	u, err := us.GetByID(id)
	if err != nil || u == nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return u.TotalPoints
}

func TestActivityCreateAppliesPoints(t *testing.T) {
	as, us, _, ava := setupActivityTestDB(t)
	when := time.Date(2024, 1, 1, 16, 0, 0, 0, time.UTC)

	act, err := as.Create(model.NewActivity{ChildID: ava.ID, Description: "Homework", Points: 5, Date: when})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	if act.Description != "Homework" {
		t.Errorf("description = %q, want %q", act.Description, "Homework")
	}
	if !act.Date.Equal(when) {
		t.Errorf("date = %v, want %v", act.Date, when)
	}
	if got := points(t, us, ava.ID); got != 5 {
		t.Errorf("total_points = %d, want 5", got)
	}

	if _, err := as.Create(model.NewActivity{ChildID: ava.ID, Description: "Talking back", Points: -8, Date: when}); err != nil {
		t.Fatalf("create penalty: %v", err)
	}
	if got := points(t, us, ava.ID); got != 0 {
		t.Errorf("total_points = %d, want 0 (floored)", got)
	}
}

func TestActivityCreateUnknownChild(t *testing.T) {
	as, _, mom, _ := setupActivityTestDB(t)

	_, err := as.Create(model.NewActivity{ChildID: mom.ID, Description: "Homework", Points: 5, Date: time.Now()})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for non-child", err)
	}

	list, err := as.ListByChild(mom.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected rollback, got %d activities", len(list))
	}
}

func TestActivityDeleteRevertsPoints(t *testing.T) {
	as, us, _, ava := setupActivityTestDB(t)
	now := time.Now()

	a1, _ := as.Create(model.NewActivity{ChildID: ava.ID, Description: "Homework", Points: 5, Date: now})
	as.Create(model.NewActivity{ChildID: ava.ID, Description: "Dishes", Points: 3, Date: now})

	if err := as.Delete(a1.ID); err != nil {
		t.Fatalf("delete activity: %v", err)
	}
	if got := points(t, us, ava.ID); got != 3 {
		t.Errorf("total_points = %d, want 3", got)
	}

	if err := as.Delete(a1.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestActivityListByChildOrdered(t *testing.T) {
	as, us, mom, ava := setupActivityTestDB(t)
	ben := mustChild(t, us, mom.ID, "ben", "Ben")

	d3 := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	d1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{d3, d1, d2} {
		if _, err := as.Create(model.NewActivity{ChildID: ava.ID, Description: "Reading", Points: 1, Date: d}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	as.Create(model.NewActivity{ChildID: ben.ID, Description: "Reading", Points: 1, Date: d1})

	list, err := as.ListByChild(ava.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(list))
	}
	for i, want := range []time.Time{d1, d2, d3} {
		if !list[i].Date.Equal(want) {
			t.Errorf("list[%d].Date = %v, want %v", i, list[i].Date, want)
		}
	}

	all, err := as.ListByParent(mom.ID, time.Time{})
	if err != nil {
		t.Fatalf("list by parent: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 activities for parent, got %d", len(all))
	}

	recent, err := as.ListByParent(mom.ID, d2)
	if err != nil {
		t.Fatalf("list by parent since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent activities, got %d", len(recent))
	}
}

func TestActivityLocalTimeStoredAsUTC(t *testing.T) {
	as, _, _, ava := setupActivityTestDB(t)
	loc := time.FixedZone("MST", -7*3600)
	when := time.Date(2024, 1, 1, 23, 30, 0, 0, loc)

	act, err := as.Create(model.NewActivity{ChildID: ava.ID, Description: "Reading", Points: 1, Date: when})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !act.Date.Equal(when) {
		t.Errorf("date = %v, want instant %v", act.Date, when)
	}
}
