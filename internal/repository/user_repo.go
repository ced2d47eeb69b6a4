package repository

import (
	"context"
	"strings"

	"commonwealth/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.EmailNotificationInterval == "" {
		u.EmailNotificationInterval = domain.IntervalNever
	}
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailsByIDs maps user id to email for the given users, skipping users without one.
func (r *UserRepository) EmailsByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []domain.User
	if err := r.db.WithContext(ctx).
		Select("id", "email").
		Where("id IN ?", ids).
		Where("email <> ''").
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Email
	}
	return out, nil
}

// ListByInterval pages users with an email who chose the given digest
// interval, ordered by id and starting after afterID.
func (r *UserRepository) ListByInterval(ctx context.Context, interval domain.EmailInterval, afterID int64, limit int) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Where("email_notification_interval = ?", interval).
		Where("email <> ''").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// SetEmailInterval updates the digest preference of one user.
func (r *UserRepository) SetEmailInterval(ctx context.Context, userID int64, interval domain.EmailInterval) error {
	res := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("email_notification_interval", interval)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
