package wishlists

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/pagination"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the wishlist row.
func (r *Repository) Create(ctx context.Context, wishlist *models.Wishlist) error {
	return r.db.WithContext(ctx).Create(wishlist).Error
}

// GetByID loads a wishlist, returning nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wishlist, error) {
	var wishlist models.Wishlist
	err := r.db.WithContext(ctx).First(&wishlist, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wishlist, nil
}

// GetBySlug loads a wishlist by its public slug, returning nil when absent.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Wishlist, error) {
	var wishlist models.Wishlist
	err := r.db.WithContext(ctx).First(&wishlist, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wishlist, nil
}

// ListByOwner returns a page of the owner's wishlists, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Wishlist, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).Model(&models.Wishlist{}).Where("owner_id = ?", ownerID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var wishlists []models.Wishlist
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&wishlists).Error; err != nil {
		return nil, nil, err
	}

	if len(wishlists) > normalized {
		next := wishlists[normalized]
		wishlists = wishlists[:normalized]
		return wishlists, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return wishlists, nil, nil
}

// Update applies the non-nil column changes.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) error {
	if len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Wishlist{}).
		Where("id = ?", id).
		Updates(changes).Error
}

// Delete removes the wishlist. Gifts cascade at the database level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Wishlist{}, "id = ?", id).Error
}

// ListGiftIDs returns the ids of all gifts on the wishlist.
func (r *Repository) ListGiftIDs(ctx context.Context, wishlistID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Gift{}).
		Where("wishlist_id = ?", wishlistID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
