package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/api/validators"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

type contributeRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	GuestName string          `json:"guest_name,omitempty" validate:"omitempty,max=100"`
}

// GiftContribute pledges an amount toward a splittable gift. The ledger
// guarantees the running total never exceeds the price.
func GiftContribute(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body contributeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Contribute(r.Context(), giftID, actorFromRequest(r, body.GuestName), body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GiftContributionWithdraw reverses one of the caller's contributions.
func GiftContributionWithdraw(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contributionID, err := uuidParam(r, "contributionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.WithdrawContribution(r.Context(), giftID, contributionID, actorFromRequest(r, "")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "withdrawn"})
	}
}
