package store

import (
	"testing"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

type reportFixture struct {
	rs       *ReportStore
	mom, dad *model.User
	ava, ben *model.User
}

func setupReportTestDB(t *testing.T) reportFixture {
	t.Helper()
	db := setupTestDB(t)
	us, as, bs := NewUserStore(db), NewActivityStore(db), NewBadgeStore(db)
	rws, rds := NewRewardStore(db), NewRedemptionStore(db)

	f := reportFixture{rs: NewReportStore(db)}
	f.mom = mustParent(t, us, "mom")
	f.dad = mustParent(t, us, "dad")
	f.ava = mustChild(t, us, f.mom.ID, "ava", "Ava")
	f.ben = mustChild(t, us, f.mom.ID, "ben", "Ben")
	other := mustChild(t, us, f.dad.ID, "max", "Max")

	log := func(child *model.User, desc string, pts int, d time.Time) {
		t.Helper()
		if _, err := as.Create(model.NewActivity{ChildID: child.ID, Description: desc, Points: pts, Date: d}); err != nil {
			t.Fatalf("log activity: %v", err)
		}
	}
	d1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	log(f.ava, "Homework", 5, d1)
	log(f.ava, "Homework", 5, d2)
	log(f.ava, "Reading", 2, d2)
	log(f.ben, "Homework", 5, d1)
	log(f.ben, "Talking back", -3, d2)
	log(other, "Dishes", 4, d1)

	b1, _ := bs.Create(model.NewBadge{ParentID: f.mom.ID, Name: "Scholar", RequiredDays: 2, ActivityType: "Homework"})
	b2, _ := bs.Create(model.NewBadge{ParentID: f.mom.ID, Name: "Bookworm", RequiredDays: 1, ActivityType: "Reading"})
	bs.Award(f.ava.ID, b1.ID, d2)
	bs.Award(f.ben.ID, b1.ID, d2)
	bs.Award(f.ava.ID, b2.ID, d2)

	reward, _ := rws.Create(model.NewReward{CreatedBy: f.mom.ID, Name: "Pizza", PointsCost: 5})
	if _, err := rds.Request(f.ava.ID, reward.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	return f
}

func TestReportTopRules(t *testing.T) {
	f := setupReportTestDB(t)

	rules, err := f.rs.TopRules(ReportFilter{ParentID: f.mom.ID})
	if err != nil {
		t.Fatalf("top rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d: %v", len(rules), rules)
	}
	if rules[0].Description != "Homework" || rules[0].Count != 3 || rules[0].Points != 15 {
		t.Errorf("rules[0] = %+v, want Homework x3 = 15", rules[0])
	}
	if rules[1].Description != "Reading" {
		t.Errorf("rules[1].Description = %q, want %q", rules[1].Description, "Reading")
	}

	benOnly, err := f.rs.TopRules(ReportFilter{ParentID: f.mom.ID, ChildName: "Ben"})
	if err != nil {
		t.Fatalf("top rules for Ben: %v", err)
	}
	if len(benOnly) != 1 || benOnly[0].Count != 1 {
		t.Errorf("Ben's rules = %v, want one Homework", benOnly)
	}
}

func TestReportPointsTrend(t *testing.T) {
	f := setupReportTestDB(t)

	trend, err := f.rs.PointsTrend(ReportFilter{ParentID: f.mom.ID})
	if err != nil {
		t.Fatalf("points trend: %v", err)
	}
	want := []model.DailyPoints{{Day: "2024-01-01", Points: 10}, {Day: "2024-01-02", Points: 4}}
	if len(trend) != len(want) {
		t.Fatalf("trend = %v, want %v", trend, want)
	}
	for i := range want {
		if trend[i] != want[i] {
			t.Errorf("trend[%d] = %+v, want %+v", i, trend[i], want[i])
		}
	}
}

func TestReportTopBadges(t *testing.T) {
	f := setupReportTestDB(t)

	badges, err := f.rs.TopBadges(ReportFilter{ParentID: f.mom.ID})
	if err != nil {
		t.Fatalf("top badges: %v", err)
	}
	if len(badges) != 2 {
		t.Fatalf("expected 2 badges, got %d", len(badges))
	}
	if badges[0].Name != "Scholar" || badges[0].Count != 2 {
		t.Errorf("badges[0] = %+v, want Scholar x2", badges[0])
	}

	none, err := f.rs.TopBadges(ReportFilter{ParentID: f.dad.ID})
	if err != nil {
		t.Fatalf("top badges for dad: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("dad's badges = %v, want none", none)
	}
}

func TestReportRedemptions(t *testing.T) {
	f := setupReportTestDB(t)

	rows, err := f.rs.Redemptions(ReportFilter{ParentID: f.mom.ID})
	if err != nil {
		t.Fatalf("redemptions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.ChildName != "Ava" || r.RewardName != "Pizza" || r.Status != model.RedemptionPending {
		t.Errorf("row = %+v, want Ava/Pizza/pending", r)
	}
	if r.RequestDate.IsZero() {
		t.Error("expected request date")
	}
}
