package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty"`
	PointsCost  int       `json:"points_cost"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	IsGlobal    bool      `json:"is_global"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewReward struct {
	CreatedBy   int64  `validate:"required,gt=0"`
	Name        string `validate:"required,max=64"`
	Description string `validate:"max=256"`
	ImageURL    string `validate:"omitempty,url"`
	PointsCost  int    `validate:"gt=0"`
	IsGlobal    bool
}

type RedemptionStatus string

const (
	RedemptionPending  RedemptionStatus = "pending"
	RedemptionApproved RedemptionStatus = "approved"
	RedemptionRejected RedemptionStatus = "rejected"
)

// IsDecision reports whether a parent may move a request into this status.
func (s RedemptionStatus) IsDecision() bool {
	return s == RedemptionApproved || s == RedemptionRejected
}

type RedemptionRequest struct {
	ID          int64            `json:"id"`
	ChildID     int64            `json:"child_id"`
	RewardID    int64            `json:"reward_id"`
	RequestDate time.Time        `json:"request_date"`
	Status      RedemptionStatus `json:"status"`
	Note        string           `json:"note,omitempty"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
}
