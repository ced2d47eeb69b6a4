package repository

import (
	"context"
	"errors"

	"commonwealth/internal/domain"

	"gorm.io/gorm"
)

type AddressRepository struct {
	db *gorm.DB
}

func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// FindByAddresses returns every Address row whose address is in the list.
func (r *AddressRepository) FindByAddresses(ctx context.Context, addresses []string) ([]domain.Address, error) {
	var rows []domain.Address
	if len(addresses) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("address IN ?", addresses).
		Find(&rows).Error
	return rows, err
}

// DisplayName returns the profile name behind an address, or the shortened
// address when the address is unknown or its owner has no profile name.
func (r *AddressRepository) DisplayName(ctx context.Context, address, communityID string) (string, error) {
	var candidates []domain.Address
	if err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("id ASC").
		Find(&candidates).Error; err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return domain.ShortAddress(address), nil
	}
	addr := candidates[0]
	for _, c := range candidates {
		if c.CommunityID == communityID {
			addr = c
			break
		}
	}

	var profile domain.Profile
	q := r.db.WithContext(ctx)
	switch {
	case addr.ProfileID != nil:
		q = q.Where("id = ?", *addr.ProfileID)
	case addr.UserID != nil:
		q = q.Where("user_id = ?", *addr.UserID)
	default:
		return domain.ShortAddress(address), nil
	}
	if err := q.First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ShortAddress(address), nil
		}
		return "", err
	}
	if profile.ProfileName == "" {
		return domain.ShortAddress(address), nil
	}
	return profile.ProfileName, nil
}
