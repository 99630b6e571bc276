package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/chorechart/internal/model"
)

func TestRuleCRUD(t *testing.T) {
	db := setupTestDB(t)
	us, rs := NewUserStore(db), NewRuleStore(db)
	mom := mustParent(t, us, "mom")

	rule, err := rs.Create(model.NewRule{ParentID: mom.ID, Name: "Homework", Description: "Finish homework", Points: 5})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if rule.Name != "Homework" {
		t.Errorf("name = %q, want %q", rule.Name, "Homework")
	}
	if rule.Points != 5 {
		t.Errorf("points = %d, want 5", rule.Points)
	}

	updated, err := rs.Update(rule.ID, model.NewRule{ParentID: mom.ID, Name: "Homework", Points: 10})
	if err != nil {
		t.Fatalf("update rule: %v", err)
	}
	if updated.Points != 10 {
		t.Errorf("points = %d, want 10", updated.Points)
	}

	if err := rs.Delete(mom.ID, rule.ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	got, err := rs.GetByID(rule.ID)
	if err != nil {
		t.Fatalf("get deleted rule: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRuleListOrdering(t *testing.T) {
	db := setupTestDB(t)
	us, rs := NewUserStore(db), NewRuleStore(db)
	mom := mustParent(t, us, "mom")
	dad := mustParent(t, us, "dad")

	rs.Create(model.NewRule{ParentID: mom.ID, Name: "Talking back", Points: -3})
	rs.Create(model.NewRule{ParentID: mom.ID, Name: "Reading", Points: 2})
	rs.Create(model.NewRule{ParentID: mom.ID, Name: "Homework", Points: 5})
	rs.Create(model.NewRule{ParentID: dad.ID, Name: "Dishes", Points: 3})

	rules, err := rs.ListByParent(mom.ID)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	want := []string{"Homework", "Reading", "Talking back"}
	for i, name := range want {
		if rules[i].Name != name {
			t.Errorf("rules[%d].Name = %q, want %q", i, rules[i].Name, name)
		}
	}
}

func TestRuleWritesAreScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	us, rs := NewUserStore(db), NewRuleStore(db)
	mom := mustParent(t, us, "mom")
	dad := mustParent(t, us, "dad")

	rule, err := rs.Create(model.NewRule{ParentID: mom.ID, Name: "Homework", Points: 5})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	got, err := rs.Update(rule.ID, model.NewRule{ParentID: dad.ID, Name: "Nothing", Points: 100})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("update by other parent err = %v, want ErrNotFound", err)
	}
	if got != nil {
		t.Errorf("update by other parent returned %+v, want nil", got)
	}
	if err := rs.Delete(dad.ID, rule.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("delete by other parent err = %v, want ErrNotFound", err)
	}

	stored, _ := rs.GetByID(rule.ID)
	if stored == nil || stored.Name != "Homework" || stored.Points != 5 {
		t.Errorf("rule = %+v, want mom's rule untouched", stored)
	}
}
