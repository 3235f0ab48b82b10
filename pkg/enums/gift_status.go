package enums

import "fmt"

// GiftStatus describes the allowed values for the `status` column in gifts.
// A gift is open until someone reserves it outright or pooled contributions
// reach its price.
type GiftStatus string

const (
	GiftStatusOpen     GiftStatus = "open"
	GiftStatusReserved GiftStatus = "reserved"
	GiftStatusFunded   GiftStatus = "funded"
)

var validGiftStatuses = []GiftStatus{
	GiftStatusOpen,
	GiftStatusReserved,
	GiftStatusFunded,
}

// IsValid reports whether the value matches the canonical gift status enum.
func (g GiftStatus) IsValid() bool {
	for _, candidate := range validGiftStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGiftStatus converts the raw string to GiftStatus.
func ParseGiftStatus(value string) (GiftStatus, error) {
	for _, candidate := range validGiftStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gift status %q", value)
}
