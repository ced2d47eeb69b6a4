package notification

import (
	"context"

	"commonwealth/internal/domain"
	"commonwealth/internal/domain/address"
)

// FilterBuilder turns include/exclude address lists into a subscriber filter.
type FilterBuilder interface {
	BuildFilter(ctx context.Context, exclude, include []string) (address.Filter, error)
}

type EmailDispatcher interface {
	DispatchImmediate(ctx context.Context, n *domain.Notification, recipients []domain.Recipient) error
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification, content domain.WebhookContent) error
}

type RealtimeDispatcher interface {
	Publish(ctx context.Context, n *domain.Notification, recipients []domain.Recipient) error
}
