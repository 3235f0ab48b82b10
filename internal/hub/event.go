package hub

import (
	"time"

	"github.com/google/uuid"

	"github.com/wishlane/wishlane-backend/pkg/enums"
)

// Event is the wire shape pushed to live subscribers. Events are
// transient; ordering is guaranteed per gift, never across gifts.
type Event struct {
	Kind       enums.EventKind `json:"kind"`
	GiftID     uuid.UUID       `json:"gift_id,omitempty"`
	WishlistID uuid.UUID       `json:"wishlist_id,omitempty"`
	Payload    any             `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(kind enums.EventKind, giftID, wishlistID uuid.UUID, payload any) Event {
	return Event{
		Kind:       kind,
		GiftID:     giftID,
		WishlistID: wishlistID,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	}
}

func resyncEvent(wishlistID uuid.UUID) Event {
	return Event{
		Kind:       enums.EventResync,
		WishlistID: wishlistID,
		Timestamp:  time.Now().UTC(),
	}
}
