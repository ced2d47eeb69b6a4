package subscription

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"commonwealth/internal/domain"
)

// Repository handles persistence for subscription data
type Repository interface {
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]domain.Subscription, error)
	GetByID(ctx context.Context, userID, id int64) (*domain.Subscription, error)
	// FindNewest returns the user's newest subscription to (category, object), or nil.
	FindNewest(ctx context.Context, userID int64, category domain.Category, objectID string) (*domain.Subscription, error)
	Create(ctx context.Context, sub *domain.Subscription) error
	Update(ctx context.Context, userID, id int64, fields map[string]any) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	q := r.db.WithContext(ctx).Where("subscriber_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("id DESC").Find(&subs).Error
	return subs, err
}

func (r *repository) GetByID(ctx context.Context, userID, id int64) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("id = ? AND subscriber_id = ?", id, userID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindNewest(ctx context.Context, userID int64, category domain.Category, objectID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND category_id = ? AND object_id = ?", userID, category, objectID).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Create(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, userID, id int64, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ? AND subscriber_id = ?", id, userID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
