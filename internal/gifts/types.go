package gifts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wishlane/wishlane-backend/pkg/db/models"
	"github.com/wishlane/wishlane-backend/pkg/enums"
)

// ReserverDTO names who holds a gift's reservation. Nil UserID means an
// anonymous guest reserved it.
type ReserverDTO struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Name   string     `json:"name"`
}

// ContributorDTO is a single contribution line shown to non-owner viewers.
type ContributorDTO struct {
	ID        uuid.UUID       `json:"id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// GiftDTO is the aggregated public shape of a gift. The owner of the
// wishlist never receives ReservedBy, Contributors or HasContributions
// so the surprise survives until the event.
type GiftDTO struct {
	ID               uuid.UUID        `json:"id"`
	WishlistID       uuid.UUID        `json:"wishlist_id"`
	Title            string           `json:"title"`
	URL              *string          `json:"url,omitempty"`
	ImageURL         *string          `json:"image_url,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	Splittable       bool             `json:"splittable"`
	Status           enums.GiftStatus `json:"status"`
	Collected        decimal.Decimal  `json:"collected"`
	Remaining        decimal.Decimal  `json:"remaining"`
	Progress         int              `json:"progress"`
	ReservedBy       *ReserverDTO     `json:"reserved_by,omitempty"`
	Contributors     []ContributorDTO `json:"contributors"`
	HasContributions bool             `json:"has_contributions"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CreateGiftInput carries the owner-supplied fields for a new gift.
type CreateGiftInput struct {
	Title      string          `json:"title" validate:"required,max=200"`
	URL        *string         `json:"url,omitempty" validate:"omitempty,url"`
	ImageURL   *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	Price      decimal.Decimal `json:"price"`
	Splittable bool            `json:"splittable"`
}

// UpdateGiftInput carries partial edits. A nil field is left untouched.
// Price edits never disturb an existing reservation or collected total.
type UpdateGiftInput struct {
	Title    *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	URL      *string          `json:"url,omitempty" validate:"omitempty,url"`
	ImageURL *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

func progressPercent(collected, price decimal.Decimal) int {
	if !price.IsPositive() {
		return 0
	}
	pct := collected.Div(price).Mul(decimal.NewFromInt(100)).IntPart()
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// FromModel builds the aggregated DTO. forOwner strips reservation and
// contribution identities, matching what the wishlist owner may see.
func FromModel(gift *models.Gift, contributions []models.Contribution, names map[uuid.UUID]string, forOwner bool) *GiftDTO {
	dto := &GiftDTO{
		ID:           gift.ID,
		WishlistID:   gift.WishlistID,
		Title:        gift.Title,
		URL:          gift.URL,
		ImageURL:     gift.ImageURL,
		Price:        gift.Price,
		Splittable:   gift.Splittable,
		Status:       gift.Status,
		Collected:    gift.Collected,
		Remaining:    gift.Remaining(),
		Progress:     progressPercent(gift.Collected, gift.Price),
		Contributors: []ContributorDTO{},
		CreatedAt:    gift.CreatedAt,
		UpdatedAt:    gift.UpdatedAt,
	}
	if forOwner {
		return dto
	}

	if gift.Reservation != nil {
		dto.ReservedBy = reserverFor(gift.Reservation, names)
	}
	for _, c := range contributions {
		dto.Contributors = append(dto.Contributors, ContributorDTO{
			ID:        c.ID,
			UserID:    c.UserID,
			Name:      contributorName(&c, names),
			Amount:    c.Amount,
			CreatedAt: c.CreatedAt,
		})
	}
	dto.HasContributions = len(dto.Contributors) > 0
	return dto
}

func reserverFor(res *models.Reservation, names map[uuid.UUID]string) *ReserverDTO {
	out := &ReserverDTO{UserID: res.UserID}
	switch {
	case res.UserID != nil:
		out.Name = names[*res.UserID]
	case res.GuestName != nil:
		out.Name = *res.GuestName
	}
	if out.Name == "" {
		out.Name = "Guest"
	}
	return out
}

func contributorName(c *models.Contribution, names map[uuid.UUID]string) string {
	switch {
	case c.UserID != nil:
		if name := names[*c.UserID]; name != "" {
			return name
		}
	case c.GuestName != nil:
		return *c.GuestName
	}
	return "Guest"
}
