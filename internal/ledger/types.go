package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/pkg/db/models"
)

// Actor identifies who is performing a ledger operation. Authenticated
// callers carry a user id; anonymous visitors carry a guest token when
// the deployment allows them.
type Actor struct {
	UserID     *uuid.UUID
	GuestToken string
	Name       string
}

// IsAnonymous reports whether the actor has no authenticated identity.
func (a Actor) IsAnonymous() bool {
	return a.UserID == nil
}

func (a Actor) ownsReservation(res *models.Reservation) bool {
	if res == nil {
		return false
	}
	if a.UserID != nil && res.UserID != nil {
		return *a.UserID == *res.UserID
	}
	if a.UserID == nil && res.UserID == nil && a.GuestToken != "" && res.GuestToken != nil {
		return a.GuestToken == *res.GuestToken
	}
	return false
}

func (a Actor) ownsContribution(c *models.Contribution) bool {
	if c == nil {
		return false
	}
	if a.UserID != nil && c.UserID != nil {
		return *a.UserID == *c.UserID
	}
	if a.UserID == nil && c.UserID == nil && a.GuestToken != "" && c.GuestToken != nil {
		return a.GuestToken == *c.GuestToken
	}
	return false
}

func (a Actor) displayName() *string {
	if a.Name == "" {
		return nil
	}
	name := a.Name
	return &name
}

// ContributionResult reports the outcome of a successful contribution.
type ContributionResult struct {
	Contribution *models.Contribution `json:"contribution"`
	Collected    decimal.Decimal      `json:"collected"`
	Remaining    decimal.Decimal      `json:"remaining"`
	Funded       bool                 `json:"funded"`
}

// Publisher receives committed state-change events for fan-out.
// Broadcast happens strictly after commit and never fails the
// originating mutation.
type Publisher interface {
	Publish(ctx context.Context, event hub.Event)
}
