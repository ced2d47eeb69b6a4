package repository

import (
	"context"

	"commonwealth/internal/domain"

	"gorm.io/gorm"
)

type CommunityRepository struct {
	db *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

func (r *CommunityRepository) Create(ctx context.Context, c *domain.Community) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CommunityRepository) GetByID(ctx context.Context, id string) (*domain.Community, error) {
	var c domain.Community
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
