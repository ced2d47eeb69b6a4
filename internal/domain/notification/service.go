package notification

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the in-app read side: listing and acknowledging read rows.
type Service struct {
	reads *ReadRepository
}

func NewService(reads *ReadRepository) *Service {
	return &Service{reads: reads}
}

// List returns the page after the afterID cursor together with the total unread count.
func (s *Service) List(ctx context.Context, userID, afterID int64, limit int, unreadOnly bool) ([]ReadItem, int64, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if afterID < 0 {
		afterID = 0
	}

	items, err := s.reads.ListForUser(ctx, userID, afterID, limit, unreadOnly)
	if err != nil {
		return nil, 0, err
	}

	unread, err := s.reads.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *Service) GetUnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.reads.CountUnread(ctx, userID)
}

func (s *Service) MarkAsRead(ctx context.Context, userID, offset int64) error {
	return mapNotFound(s.reads.MarkRead(ctx, userID, offset))
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	return s.reads.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, offset int64) error {
	return mapNotFound(s.reads.Delete(ctx, userID, offset))
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
