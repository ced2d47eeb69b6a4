package address

import (
	"context"
	"fmt"
	"sort"

	"commonwealth/internal/domain"
)

// AddressFinder is implemented by repository.AddressRepository.
type AddressFinder interface {
	FindByAddresses(ctx context.Context, addresses []string) ([]domain.Address, error)
}

// Resolver maps wallet addresses to the users that own them.
type Resolver struct {
	finder AddressFinder
}

func NewResolver(finder AddressFinder) *Resolver {
	return &Resolver{finder: finder}
}

// ResolveUserIDs returns the distinct owners of the given addresses in
// ascending order. Unowned addresses are ignored and an empty input matches
// nobody, without touching the database.
func (r *Resolver) ResolveUserIDs(ctx context.Context, addresses []string) ([]int64, error) {
	if len(addresses) == 0 {
		return []int64{}, nil
	}

	rows, err := r.finder.FindByAddresses(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("find addresses: %w", err)
	}

	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		if row.UserID == nil {
			continue
		}
		if _, ok := seen[*row.UserID]; ok {
			continue
		}
		seen[*row.UserID] = struct{}{}
		ids = append(ids, *row.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// FilterMode says how a Filter restricts subscribers.
type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterExclude
	FilterInclude
)

// Filter restricts fan-out to, or away from, a set of users.
type Filter struct {
	Mode    FilterMode
	UserIDs []int64
}

// BuildFilter resolves the exclude list when it is non-empty, otherwise the
// include list. Exclude wins when both are given.
func (r *Resolver) BuildFilter(ctx context.Context, exclude, include []string) (Filter, error) {
	switch {
	case len(exclude) > 0:
		ids, err := r.ResolveUserIDs(ctx, exclude)
		if err != nil {
			return Filter{}, err
		}
		return Filter{Mode: FilterExclude, UserIDs: ids}, nil
	case len(include) > 0:
		ids, err := r.ResolveUserIDs(ctx, include)
		if err != nil {
			return Filter{}, err
		}
		return Filter{Mode: FilterInclude, UserIDs: ids}, nil
	default:
		return Filter{Mode: FilterNone}, nil
	}
}
