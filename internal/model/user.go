package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	Age         *int      `json:"age,omitempty"`
	TotalPoints int       `json:"total_points"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewParent struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Name     string `validate:"required,max=64"`
}

type NewChild struct {
	ParentID int64  `validate:"required,gt=0"`
	Username string `validate:"required,min=3,max=32,alphanum"`
	Name     string `validate:"required,max=64"`
	Age      int    `validate:"gte=0,lte=21"`
	ImageURL string `validate:"omitempty,url"`
}
