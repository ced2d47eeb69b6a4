package integration

import "errors"

var (
	ErrWebhookNotFound   = errors.New("webhook not found")
	ErrWebhookExists     = errors.New("webhook already exists")
	ErrInvalidWebhookURL = errors.New("invalid webhook url")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrCommunityNotFound = errors.New("community not found")
)
