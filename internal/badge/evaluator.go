package badge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/chorechart/internal/model"
)

// ErrMalformedDate is returned when an activity carries no usable date.
var ErrMalformedDate = errors.New("malformed activity date")

// HeldFunc reports whether a child already holds a badge.
type HeldFunc func(childID, badgeID int64) bool

// Evaluate decides which badges a child has newly earned.
//
// For every badge, the child's matching activities are reduced to distinct calendar
// days and the longest run of consecutive days is compared against RequiredDays.
// Badges the child already holds are never returned. The result holds at most one
// award per badge ID, in catalog order. Evaluate has no side effects; the caller
// persists the awards.
func Evaluate(childID int64, activities []model.Activity, badges []model.Badge, held HeldFunc) ([]model.Award, error) {
	for _, a := range activities {
		if a.Date.IsZero() {
			return nil, fmt.Errorf("activity %d: %w", a.ID, ErrMalformedDate)
		}
	}

	var awards []model.Award
	seen := make(map[int64]bool, len(badges))
	for _, b := range badges {
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true

		if !Qualifies(activities, b) {
			continue
		}
		if held != nil && held(childID, b.ID) {
			continue
		}
		awards = append(awards, model.Award{ChildID: childID, BadgeID: b.ID})
	}
	return awards, nil
}

// Qualifies reports whether the activity history satisfies the badge's streak requirement.
// A badge with no activity type or a negative day count can never be satisfied.
// A zero day count still needs one matching day, so an empty history earns nothing.
func Qualifies(activities []model.Activity, b model.Badge) bool {
	if strings.TrimSpace(b.ActivityType) == "" || b.RequiredDays < 0 {
		return false
	}
	return LongestStreak(StreakDays(activities, b.ActivityType)) >= max(b.RequiredDays, 1)
}

// StreakDays returns the distinct calendar days, ascending, on which an activity
// matching activityType was logged. Days are taken in each activity's own location
// and returned as UTC midnights so that adjacent days are exactly 24h apart.
func StreakDays(activities []model.Activity, activityType string) []time.Time {
	set := make(map[time.Time]struct{})
	for _, a := range activities {
		if !strings.EqualFold(a.Description, activityType) {
			continue
		}
		set[dayKey(a.Date)] = struct{}{}
	}

	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// LongestStreak returns the length of the longest run of consecutive days in a
// sorted, de-duplicated day list as produced by StreakDays.
func LongestStreak(days []time.Time) int {
	if len(days) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}
	return longest
}

func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
