package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidCategory      = errors.New("invalid subscription category")
	ErrMissingObjectID      = errors.New("object_id is required")
	ErrInvalidInterval      = errors.New("email interval must be never, daily or weekly")
	ErrUserNotFound         = errors.New("user not found")
)
