package gifts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishlane/wishlane-backend/pkg/db/models"
)

// Repository reads and writes gift rows plus the lookups needed to
// render the aggregated view. Reservation and contribution state is
// never mutated here; that belongs to the ledger.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, gift *models.Gift) error {
	return r.db.WithContext(ctx).Create(gift).Error
}

// GetByID loads a gift with its reservation, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	var gift models.Gift
	err := r.db.WithContext(ctx).
		Preload("Reservation").
		First(&gift, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gift, nil
}

// ListByWishlist returns the wishlist's gifts in insertion order.
func (r *Repository) ListByWishlist(ctx context.Context, wishlistID uuid.UUID) ([]models.Gift, error) {
	var gifts []models.Gift
	err := r.db.WithContext(ctx).
		Preload("Reservation").
		Where("wishlist_id = ?", wishlistID).
		Order("created_at ASC, id ASC").
		Find(&gifts).Error
	if err != nil {
		return nil, err
	}
	return gifts, nil
}

// ListContributions loads contributions for a set of gifts, newest first.
func (r *Repository) ListContributions(ctx context.Context, giftIDs []uuid.UUID) ([]models.Contribution, error) {
	if len(giftIDs) == 0 {
		return nil, nil
	}
	var contributions []models.Contribution
	err := r.db.WithContext(ctx).
		Where("gift_id IN ?", giftIDs).
		Order("created_at DESC").
		Find(&contributions).Error
	if err != nil {
		return nil, err
	}
	return contributions, nil
}

// UserNames resolves display names for the given user ids.
func (r *Repository) UserNames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).
		Select("id", "name").
		Where("id IN ?", userIDs).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Gift{}).
		Where("id = ?", id).
		Updates(changes).Error
}
