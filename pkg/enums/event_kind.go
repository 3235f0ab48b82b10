package enums

import "fmt"

// EventKind tags the real-time notifications pushed to wishlist subscribers.
type EventKind string

const (
	EventGiftAdded       EventKind = "gift-added"
	EventGiftUpdated     EventKind = "gift-updated"
	EventGiftRemoved     EventKind = "gift-removed"
	EventGiftReserved    EventKind = "gift-reserved"
	EventGiftUnreserved  EventKind = "gift-unreserved"
	EventGiftContributed EventKind = "gift-contributed"
	EventGiftFunded      EventKind = "gift-funded"
	EventGiftUnfunded    EventKind = "gift-unfunded"
	// EventResync tells a subscriber its queue overflowed and it should
	// refetch the wishlist instead of trusting the event stream.
	EventResync EventKind = "resync"
)

var validEventKinds = []EventKind{
	EventGiftAdded,
	EventGiftUpdated,
	EventGiftRemoved,
	EventGiftReserved,
	EventGiftUnreserved,
	EventGiftContributed,
	EventGiftFunded,
	EventGiftUnfunded,
	EventResync,
}

// IsValid reports whether the value matches the canonical event kind enum.
func (e EventKind) IsValid() bool {
	for _, candidate := range validEventKinds {
		if candidate == e {
			return true
		}
	}
	return false
}

// IsLandingKind reports whether the event belongs on the public landing feed
// in addition to its wishlist channel.
func (e EventKind) IsLandingKind() bool {
	switch e {
	case EventGiftContributed, EventGiftFunded:
		return true
	default:
		return false
	}
}

// ParseEventKind converts the raw string to EventKind.
func ParseEventKind(value string) (EventKind, error) {
	for _, candidate := range validEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q", value)
}
