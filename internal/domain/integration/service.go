package integration

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/validator"
)

// WebhookStore is implemented by repository.WebhookRepository.
type WebhookStore interface {
	Create(ctx context.Context, w *domain.Webhook) error
	ListByCommunity(ctx context.Context, communityID string) ([]domain.Webhook, error)
	FindByURL(ctx context.Context, communityID, url string) (*domain.Webhook, error)
	UpdateCategories(ctx context.Context, id int64, categories []string) error
	Delete(ctx context.Context, communityID string, id int64) (bool, error)
}

type CommunityFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Community, error)
}

// Service manages the webhooks a community posts its notifications to.
type Service struct {
	webhooks    WebhookStore
	communities CommunityFinder
}

func NewService(webhooks WebhookStore, communities CommunityFinder) *Service {
	return &Service{webhooks: webhooks, communities: communities}
}

func (s *Service) List(ctx context.Context, communityID string) ([]domain.Webhook, error) {
	if err := s.requireCommunity(ctx, communityID); err != nil {
		return nil, err
	}
	return s.webhooks.ListByCommunity(ctx, communityID)
}

// Create registers url for the community. A URL may only be registered once
// per community.
func (s *Service) Create(ctx context.Context, communityID, url string, categories []string) (*domain.Webhook, error) {
	if !validator.IsHTTPURL(url) {
		return nil, ErrInvalidWebhookURL
	}
	cats, err := normalizeCategories(categories)
	if err != nil {
		return nil, err
	}
	if err := s.requireCommunity(ctx, communityID); err != nil {
		return nil, err
	}

	_, err = s.webhooks.FindByURL(ctx, communityID, url)
	switch {
	case err == nil:
		return nil, ErrWebhookExists
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find webhook: %w", err)
	}

	w := &domain.Webhook{URL: url, CommunityID: communityID, Categories: cats}
	if err := s.webhooks.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	return w, nil
}

// SetCategories replaces the category allowlist of the community's webhook
// registered for url.
func (s *Service) SetCategories(ctx context.Context, communityID, url string, categories []string) (*domain.Webhook, error) {
	cats, err := normalizeCategories(categories)
	if err != nil {
		return nil, err
	}
	w, err := s.webhooks.FindByURL(ctx, communityID, url)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook: %w", err)
	}
	if err := s.webhooks.UpdateCategories(ctx, w.ID, cats); err != nil {
		return nil, fmt.Errorf("update webhook %d: %w", w.ID, err)
	}
	w.Categories = cats
	return w, nil
}

func (s *Service) Delete(ctx context.Context, communityID string, id int64) error {
	deleted, err := s.webhooks.Delete(ctx, communityID, id)
	if err != nil {
		return fmt.Errorf("delete webhook %d: %w", id, err)
	}
	if !deleted {
		return ErrWebhookNotFound
	}
	return nil
}

func (s *Service) requireCommunity(ctx context.Context, communityID string) error {
	_, err := s.communities.GetByID(ctx, communityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCommunityNotFound
	}
	return err
}

// normalizeCategories validates ids and drops duplicates, keeping order.
func normalizeCategories(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !domain.Category(id).Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
