package notification

import (
	"errors"

	"commonwealth/internal/domain"
)

var (
	ErrInvalidCategory = errors.New("invalid notification category")
	ErrMissingObjectID = errors.New("object id is required")
	ErrInvalidPayload  = domain.ErrInvalidPayload
	ErrNotFound        = errors.New("notification not found")
)
