package repository

import (
	"context"
	"time"

	"commonwealth/internal/domain"

	"gorm.io/gorm"
)

// DigestItem is one notification linked to a digest recipient.
type DigestItem struct {
	UserID           int64
	NotificationID   int64
	CategoryID       domain.Category
	NotificationData string
	ChainID          *string
	ThreadID         *int64
	CreatedAt        time.Time
}

// Notification rebuilds the notification the item refers to.
func (i DigestItem) Notification() *domain.Notification {
	return &domain.Notification{
		ID:               i.NotificationID,
		NotificationData: i.NotificationData,
		CategoryID:       i.CategoryID,
		ChainID:          i.ChainID,
		ThreadID:         i.ThreadID,
		CreatedAt:        i.CreatedAt,
	}
}

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// DigestItems returns every notification the given users hold a read row for,
// created after since, excluding categories that never appear in digests.
// Items are ordered by user and then by the user's offset.
func (r *NotificationRepository) DigestItems(ctx context.Context, userIDs []int64, since time.Time) ([]DigestItem, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var items []DigestItem
	err := r.db.WithContext(ctx).
		Table("notifications_read AS nr").
		Select(`nr.user_id AS user_id, n.id AS notification_id, n.category_id AS category_id,
			n.notification_data AS notification_data, n.chain_id AS chain_id,
			n.thread_id AS thread_id, n.created_at AS created_at`).
		Joins("JOIN notifications n ON n.id = nr.notification_id").
		Where("nr.user_id IN ?", userIDs).
		Where("n.created_at > ?", since).
		Where("n.category_id NOT IN ?", domain.DigestExcludedCategories()).
		Order("nr.user_id ASC, nr.id ASC").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
