package model

import "time"

// Rule is a parent-defined behaviour template. Activities refer to rules by name only.
type Rule struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewRule struct {
	ParentID    int64  `validate:"required,gt=0"`
	Name        string `validate:"required,max=64"`
	Description string `validate:"max=256"`
	Points      int    `validate:"ne=0"`
}
