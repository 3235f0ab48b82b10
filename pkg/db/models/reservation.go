package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation marks a non-splittable gift as claimed by one actor.
// The unique index on gift_id is the database-level backstop for the
// single-reservation invariant the ledger enforces in memory.
type Reservation struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	GiftID     uuid.UUID  `gorm:"column:gift_id;type:uuid;not null;uniqueIndex:reservations_gift_id_key"`
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid;index:reservations_user_id_idx"`
	GuestToken *string    `gorm:"column:guest_token"`
	GuestName  *string    `gorm:"column:guest_name"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
