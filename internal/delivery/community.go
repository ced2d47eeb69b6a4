// Package delivery holds what the email, webhook and realtime channels share.
package delivery

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"commonwealth/internal/domain"
)

type CommunityFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Community, error)
}

// Communities looks up community rows for rendering. Concurrent lookups of the
// same id share one query.
type Communities struct {
	finder CommunityFinder
	group  singleflight.Group
}

func NewCommunities(finder CommunityFinder) *Communities {
	return &Communities{finder: finder}
}

// Get returns the community with the given id. Unknown ids resolve to a
// placeholder named after the id so rendering can continue.
func (c *Communities) Get(ctx context.Context, id string) (*domain.Community, error) {
	if id == "" {
		return &domain.Community{}, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		community, err := c.finder.GetByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.Community{ID: id, Name: id}, nil
		}
		if err != nil {
			return nil, err
		}
		return community, nil
	})
	if err != nil {
		return nil, err
	}

	// callers may hold on to the row; give each its own copy
	community := *v.(*domain.Community)
	return &community, nil
}
