package model

import "time"

type RuleCount struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
	Points      int    `json:"points"`
}

type DailyPoints struct {
	Day    string `json:"day"`
	Points int    `json:"points"`
}

type BadgeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type RedemptionRow struct {
	ID          int64            `json:"id"`
	ChildName   string           `json:"child_name"`
	RewardName  string           `json:"reward_name"`
	PointsCost  int              `json:"points_cost"`
	RequestDate time.Time        `json:"request_date"`
	Status      RedemptionStatus `json:"status"`
}
