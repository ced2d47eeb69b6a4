package notification

import (
	"context"
	"time"

	"gorm.io/gorm"

	"commonwealth/internal/domain"
)

// ReadItem is a user's read row joined with the notification it points at.
type ReadItem struct {
	ReadOffset       int64
	NotificationID   int64
	SubscriptionID   int64
	IsRead           bool
	CategoryID       domain.Category
	NotificationData string
	ChainID          *string
	ThreadID         *int64
	CreatedAt        time.Time
}

type ReadRepository struct {
	db *gorm.DB
}

func NewReadRepository(db *gorm.DB) *ReadRepository {
	return &ReadRepository{db: db}
}

// ListForUser returns the user's read rows with offset greater than afterID,
// oldest first.
func (r *ReadRepository) ListForUser(ctx context.Context, userID, afterID int64, limit int, unreadOnly bool) ([]ReadItem, error) {
	q := r.db.WithContext(ctx).
		Table("notifications_read AS nr").
		Select(`nr.id AS read_offset, nr.notification_id, nr.subscription_id, nr.is_read,
			n.category_id, n.notification_data, n.chain_id, n.thread_id, n.created_at`).
		Joins("JOIN notifications n ON n.id = nr.notification_id").
		Where("nr.user_id = ? AND nr.id > ?", userID, afterID)
	if unreadOnly {
		q = q.Where("nr.is_read = ?", false)
	}

	var items []ReadItem
	err := q.Order("nr.id ASC").Limit(limit).Scan(&items).Error
	return items, err
}

func (r *ReadRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.NotificationRead{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *ReadRepository) MarkRead(ctx context.Context, userID, offset int64) error {
	res := r.db.WithContext(ctx).
		Model(&domain.NotificationRead{}).
		Where("user_id = ? AND id = ?", userID, offset).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReadRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.NotificationRead{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *ReadRepository) Delete(ctx context.Context, userID, offset int64) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, offset).
		Delete(&domain.NotificationRead{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
