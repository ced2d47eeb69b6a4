package domain

import "time"

// Subscription is a user's standing interest in a (category, object) pair.
// Unsubscribing flips IsActive; rows are never hard-deleted.
type Subscription struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	SubscriberID   int64     `json:"subscriber_id" gorm:"column:subscriber_id;not null;index"`
	CategoryID     Category  `json:"category_id" gorm:"column:category_id;size:64;not null;index:idx_subscriptions_target,priority:1"`
	ObjectID       string    `json:"object_id" gorm:"column:object_id;size:255;not null;index:idx_subscriptions_target,priority:2"`
	IsActive       bool      `json:"is_active" gorm:"column:is_active;not null"`
	ImmediateEmail bool      `json:"immediate_email" gorm:"column:immediate_email;not null"`
	ChainID        *string   `json:"chain_id,omitempty" gorm:"column:chain_id;size:255"`
	ThreadID       *int64    `json:"thread_id,omitempty" gorm:"column:thread_id"`
	CommentID      *int64    `json:"comment_id,omitempty" gorm:"column:comment_id"`
	SnapshotID     *string   `json:"snapshot_id,omitempty" gorm:"column:snapshot_id;size:255"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
