package model

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidStatus      = errors.New("invalid status")
)
