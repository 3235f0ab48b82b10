package wishlists

import (
	"time"

	"github.com/google/uuid"

	"github.com/wishlane/wishlane-backend/pkg/db/models"
)

// WishlistDTO is the transport shape for a wishlist.
type WishlistDTO struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	IsPublic    bool       `json:"is_public"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateWishlistInput carries the owner-provided fields for a new wishlist.
type CreateWishlistInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	IsPublic    *bool      `json:"is_public,omitempty"`
}

// UpdateWishlistInput carries partial edits. Nil fields are untouched.
type UpdateWishlistInput struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string    `json:"description,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	IsPublic    *bool      `json:"is_public,omitempty"`
}

// WishlistPageDTO wraps a cursor-paginated wishlist listing.
type WishlistPageDTO struct {
	Items  []WishlistDTO `json:"items"`
	Cursor string        `json:"cursor"`
}

// FromModel converts the persistence model to its DTO.
func FromModel(w *models.Wishlist) *WishlistDTO {
	if w == nil {
		return nil
	}
	return &WishlistDTO{
		ID:          w.ID,
		OwnerID:     w.OwnerID,
		Slug:        w.Slug,
		Title:       w.Title,
		Description: w.Description,
		EventDate:   w.EventDate,
		IsPublic:    w.IsPublic,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}
