package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"commonwealth/internal/domain"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, w *domain.Webhook) error {
	return r.db.WithContext(ctx).Create(w).Error
}

// ListForCategory returns the community's webhooks whose allowlist contains the
// category. The allowlist is JSON, so the filter runs in Go on both dialects.
func (r *WebhookRepository) ListForCategory(ctx context.Context, communityID string, category domain.Category) ([]domain.Webhook, error) {
	var all []domain.Webhook
	if err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("id ASC").
		Find(&all).Error; err != nil {
		return nil, err
	}

	out := all[:0]
	for _, w := range all {
		if w.HasCategory(category) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *WebhookRepository) ListByCommunity(ctx context.Context, communityID string) ([]domain.Webhook, error) {
	var hooks []domain.Webhook
	err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("id ASC").
		Find(&hooks).Error
	return hooks, err
}

// FindByURL returns gorm.ErrRecordNotFound when the community has no webhook for url.
func (r *WebhookRepository) FindByURL(ctx context.Context, communityID, url string) (*domain.Webhook, error) {
	var w domain.Webhook
	if err := r.db.WithContext(ctx).
		Where("community_id = ? AND url = ?", communityID, url).
		First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WebhookRepository) UpdateCategories(ctx context.Context, id int64, categories []string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Webhook{}).
		Where("id = ?", id).
		Update("categories", datatypes.JSONSlice[string](categories)).Error
}

// Delete reports whether a row was removed.
func (r *WebhookRepository) Delete(ctx context.Context, communityID string, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("community_id = ? AND id = ?", communityID, id).
		Delete(&domain.Webhook{})
	return res.RowsAffected > 0, res.Error
}
