package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wishlane/wishlane-backend/pkg/enums"
)

// Gift is a single item on a wishlist. Splittable gifts accumulate
// contributions in Collected; non-splittable gifts carry at most one
// active reservation. Status transitions happen only under the
// per-gift lock held by the ledger service.
type Gift struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	WishlistID  uuid.UUID        `gorm:"column:wishlist_id;type:uuid;not null;index:gifts_wishlist_id_idx"`
	Title       string           `gorm:"column:title;not null"`
	URL         *string          `gorm:"column:url"`
	ImageURL    *string          `gorm:"column:image_url"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	Splittable  bool             `gorm:"column:splittable;not null;default:false"`
	Status      enums.GiftStatus `gorm:"column:status;type:text;not null;default:open"`
	Collected   decimal.Decimal  `gorm:"column:collected;type:numeric(10,2);not null;default:0"`
	Reservation *Reservation     `gorm:"foreignKey:GiftID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Remaining returns how much is still needed to fully fund the gift.
func (g Gift) Remaining() decimal.Decimal {
	r := g.Price.Sub(g.Collected)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
