package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contribution records a single pledged amount toward a splittable
// gift. Rows are append-only except for withdrawal, which deletes the
// row and reverses the gift's collected total in the same transaction.
type Contribution struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	GiftID     uuid.UUID       `gorm:"column:gift_id;type:uuid;not null;index:contributions_gift_id_idx"`
	UserID     *uuid.UUID      `gorm:"column:user_id;type:uuid;index:contributions_user_id_idx"`
	GuestToken *string         `gorm:"column:guest_token"`
	GuestName  *string         `gorm:"column:guest_name"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
