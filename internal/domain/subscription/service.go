package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"commonwealth/internal/domain"
)

// IntervalStore persists a user's digest preference.
type IntervalStore interface {
	SetEmailInterval(ctx context.Context, userID int64, interval domain.EmailInterval) error
}

// Service manages the standing interests fan-out reads from.
type Service struct {
	repo      Repository
	intervals IntervalStore
}

func NewService(repo Repository, intervals IntervalStore) *Service {
	return &Service{repo: repo, intervals: intervals}
}

func (s *Service) List(ctx context.Context, userID int64, activeOnly bool) ([]domain.Subscription, error) {
	return s.repo.ListByUser(ctx, userID, activeOnly)
}

// Subscribe creates the subscription, or reactivates the user's newest one for
// the same (category, object). The bool reports whether a row was created.
func (s *Service) Subscribe(ctx context.Context, userID int64, req *CreateSubscriptionRequest) (*domain.Subscription, bool, error) {
	category := domain.Category(req.CategoryID)
	if !category.Valid() {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidCategory, req.CategoryID)
	}
	objectID := strings.TrimSpace(req.ObjectID)
	if objectID == "" {
		return nil, false, ErrMissingObjectID
	}

	existing, err := s.repo.FindNewest(ctx, userID, category, objectID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		fields := map[string]any{"is_active": true}
		if req.ImmediateEmail != nil {
			fields["immediate_email"] = *req.ImmediateEmail
		}
		if !existing.IsActive || req.ImmediateEmail != nil {
			if err := s.repo.Update(ctx, userID, existing.ID, fields); err != nil {
				return nil, false, err
			}
		}
		sub, err := s.repo.GetByID(ctx, userID, existing.ID)
		return sub, false, err
	}

	sub := &domain.Subscription{
		SubscriberID: userID,
		CategoryID:   category,
		ObjectID:     objectID,
		IsActive:     true,
		ChainID:      req.ChainID,
		ThreadID:     req.ThreadID,
		CommentID:    req.CommentID,
		SnapshotID:   req.SnapshotID,
	}
	if req.ImmediateEmail != nil {
		sub.ImmediateEmail = *req.ImmediateEmail
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, false, err
	}
	return sub, true, nil
}

// Disable stops fan-out to the subscription without deleting it.
func (s *Service) Disable(ctx context.Context, userID, id int64) (*domain.Subscription, error) {
	return s.update(ctx, userID, id, map[string]any{"is_active": false})
}

func (s *Service) Enable(ctx context.Context, userID, id int64) (*domain.Subscription, error) {
	return s.update(ctx, userID, id, map[string]any{"is_active": true})
}

func (s *Service) SetImmediateEmail(ctx context.Context, userID, id int64, enabled bool) (*domain.Subscription, error) {
	return s.update(ctx, userID, id, map[string]any{"immediate_email": enabled})
}

func (s *Service) update(ctx context.Context, userID, id int64, fields map[string]any) (*domain.Subscription, error) {
	if err := s.repo.Update(ctx, userID, id, fields); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) SetEmailInterval(ctx context.Context, userID int64, interval domain.EmailInterval) error {
	if !interval.Valid() {
		return ErrInvalidInterval
	}
	err := s.intervals.SetEmailInterval(ctx, userID, interval)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
