package model

import "time"

type Activity struct {
	ID          int64     `json:"id"`
	ChildID     int64     `json:"child_id"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	Date        time.Time `json:"date"`
}

type NewActivity struct {
	ChildID     int64     `validate:"required,gt=0"`
	Description string    `validate:"required,max=128"`
	Points      int       `validate:"ne=0"`
	Date        time.Time `validate:"required"`
}
