package controllers

import (
	"net/http"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/api/validators"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

type reserveRequest struct {
	GuestName string `json:"guest_name,omitempty" validate:"omitempty,max=100"`
}

// GiftReserve claims a non-splittable gift for the caller. Exactly one
// claim wins under contention; the rest fail with ALREADY_RESERVED.
func GiftReserve(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body reserveRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := svc.Reserve(r.Context(), giftID, actorFromRequest(r, body.GuestName))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

// GiftReservationCancel releases the caller's claim on a gift.
func GiftReservationCancel(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelReservation(r.Context(), giftID, actorFromRequest(r, "")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}
