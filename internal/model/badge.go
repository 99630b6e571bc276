package model

import "time"

// Badge is an achievement earned by logging ActivityType on RequiredDays consecutive days.
// ActivityType holds a rule name, matched case-insensitively against Activity.Description.
type Badge struct {
	ID           int64     `json:"id"`
	ParentID     int64     `json:"parent_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	RequiredDays int       `json:"required_days"`
	ActivityType string    `json:"activity_type"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewBadge struct {
	ParentID     int64  `validate:"required,gt=0"`
	Name         string `validate:"required,max=64"`
	Description  string `validate:"max=256"`
	Icon         string `validate:"max=16"`
	RequiredDays int    `validate:"gte=1,lte=366"`
	ActivityType string `validate:"required,max=128"`
}

// ChildBadge records that a child earned a badge. At most one exists per (ChildID, BadgeID).
type ChildBadge struct {
	ID         int64     `json:"id"`
	ChildID    int64     `json:"child_id"`
	BadgeID    int64     `json:"badge_id"`
	DateEarned time.Time `json:"date_earned"`
}

type EarnedBadge struct {
	Badge
	DateEarned time.Time `json:"date_earned"`
}

// Award is a request to record a ChildBadge.
type Award struct {
	ChildID int64 `json:"child_id"`
	BadgeID int64 `json:"badge_id"`
}
