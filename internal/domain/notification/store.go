package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/metrics"
)

// Store creates canonical Notification rows, at most one per dedup key.
type Store struct {
	db      *gorm.DB
	metrics *metrics.Recorder
}

func NewStore(db *gorm.DB, rec *metrics.Recorder) *Store {
	return &Store{db: db, metrics: rec}
}

// GetOrCreate returns the notification for the payload's dedup key, creating
// it when none exists. Chain events map to category chain-event whatever
// category the producer passed.
func (s *Store) GetOrCreate(ctx context.Context, category domain.Category, payload domain.Payload) (*domain.Notification, error) {
	var out *domain.Notification
	err := s.metrics.Time(metrics.StageStore, func() error {
		n, err := s.getOrCreate(ctx, category, payload)
		out = n
		return err
	})
	return out, err
}

func (s *Store) getOrCreate(ctx context.Context, category domain.Category, payload domain.Payload) (*domain.Notification, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	key, err := domain.DedupKeyFor(payload)
	if err != nil {
		return nil, err
	}
	serialized, err := domain.EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	switch k := key.(type) {
	case domain.ChainEventKey:
		return s.getOrCreateChainEvent(ctx, k.ExternalID, serialized, payload)
	case domain.ForumKey:
		return s.getOrCreateForum(ctx, category, k.Serialized, payload)
	default:
		return nil, fmt.Errorf("%w: unsupported dedup key %T", ErrInvalidPayload, key)
	}
}

func (s *Store) getOrCreateChainEvent(ctx context.Context, eventID int64, serialized string, payload domain.Payload) (*domain.Notification, error) {
	existing, err := s.findOne(ctx, "chain_event_id = ?", eventID)
	if err != nil || existing != nil {
		return existing, err
	}

	n := &domain.Notification{
		NotificationData: serialized,
		CategoryID:       domain.CategoryChainEvent,
		ChainID:          optionalString(payload.CommunityID()),
		ChainEventID:     &eventID,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("create chain event notification: %w", err)
		}
		// lost the race to a concurrent creator of the same event
		winner, ferr := s.findOne(ctx, "chain_event_id = ?", eventID)
		if ferr != nil {
			return nil, ferr
		}
		if winner == nil {
			return nil, fmt.Errorf("create chain event notification: %w", err)
		}
		return winner, nil
	}
	return n, nil
}

func (s *Store) getOrCreateForum(ctx context.Context, category domain.Category, serialized string, payload domain.Payload) (*domain.Notification, error) {
	// one row per distinct payload, whichever category emits it first
	existing, err := s.findOne(ctx, "notification_data = ?", serialized)
	if err != nil || existing != nil {
		return existing, err
	}

	n := &domain.Notification{
		NotificationData: serialized,
		CategoryID:       category,
		ChainID:          optionalString(payload.CommunityID()),
	}
	if threadID, ok := payload.ThreadID(); ok {
		n.ThreadID = &threadID
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *Store) findOne(ctx context.Context, query string, args ...any) (*domain.Notification, error) {
	var n domain.Notification
	res := s.db.WithContext(ctx).Where(query, args...).Order("id ASC").Limit(1).Find(&n)
	if res.Error != nil {
		return nil, fmt.Errorf("find notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &n, nil
}

// GetByID loads a notification by its global id.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := s.findOne(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
