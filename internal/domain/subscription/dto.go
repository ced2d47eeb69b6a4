package subscription

import (
	"time"

	"commonwealth/internal/domain"
)

// CreateSubscriptionRequest subscribes the caller to a (category, object) pair.
type CreateSubscriptionRequest struct {
	CategoryID     string  `json:"category_id" binding:"required"`
	ObjectID       string  `json:"object_id" binding:"required"`
	ImmediateEmail *bool   `json:"immediate_email"`
	ChainID        *string `json:"chain_id"`
	ThreadID       *int64  `json:"thread_id"`
	CommentID      *int64  `json:"comment_id"`
	SnapshotID     *string `json:"snapshot_id"`
}

type ImmediateEmailRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type EmailIntervalRequest struct {
	Interval string `json:"interval" validate:"required,oneof=never daily weekly"`
}

type SubscriptionResponse struct {
	ID             int64     `json:"id"`
	CategoryID     string    `json:"category_id"`
	ObjectID       string    `json:"object_id"`
	IsActive       bool      `json:"is_active"`
	ImmediateEmail bool      `json:"immediate_email"`
	ChainID        *string   `json:"chain_id,omitempty"`
	ThreadID       *int64    `json:"thread_id,omitempty"`
	CommentID      *int64    `json:"comment_id,omitempty"`
	SnapshotID     *string   `json:"snapshot_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func toResponse(s *domain.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:             s.ID,
		CategoryID:     string(s.CategoryID),
		ObjectID:       s.ObjectID,
		IsActive:       s.IsActive,
		ImmediateEmail: s.ImmediateEmail,
		ChainID:        s.ChainID,
		ThreadID:       s.ThreadID,
		CommentID:      s.CommentID,
		SnapshotID:     s.SnapshotID,
		CreatedAt:      s.CreatedAt,
	}
}
