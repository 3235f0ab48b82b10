package models

import (
	"time"

	"github.com/google/uuid"
)

// Wishlist is a shareable collection of gifts owned by a single user.
type Wishlist struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index:wishlists_owner_id_idx"`
	Slug        string     `gorm:"column:slug;type:text;not null;uniqueIndex"`
	Title       string     `gorm:"column:title;not null"`
	Description *string    `gorm:"column:description"`
	EventDate   *time.Time `gorm:"column:event_date;type:date"`
	IsPublic    bool       `gorm:"column:is_public;not null;default:true"`
	Gifts       []Gift     `gorm:"foreignKey:WishlistID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
