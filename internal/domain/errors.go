package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	// ErrDelivery marks a failure reported by the email provider.
	ErrDelivery = errors.New("delivery failed")
)
