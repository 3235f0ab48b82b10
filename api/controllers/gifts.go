package controllers

import (
	"net/http"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/api/validators"
	"github.com/wishlane/wishlane-backend/internal/gifts"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

// GiftCreate adds a gift to one of the caller's wishlists.
func GiftCreate(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wishlistID, err := uuidParam(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body gifts.CreateGiftInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), ownerID, wishlistID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// GiftList returns a wishlist's gifts with the viewer-dependent
// aggregated state.
func GiftList(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wishlistID, err := uuidParam(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByWishlist(r.Context(), wishlistID, viewerID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// GiftGet returns a single gift with the viewer-dependent view.
func GiftGet(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gift, err := svc.Get(r.Context(), giftID, viewerID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, gift)
	}
}

// GiftUpdate applies a partial owner edit. Editing never disturbs an
// active reservation or the collected total.
func GiftUpdate(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body gifts.UpdateGiftInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), ownerID, giftID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// GiftDelete removes a gift, releasing any reservation or
// contributions it held.
func GiftDelete(svc gifts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		giftID, err := uuidParam(r, "giftID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), ownerID, giftID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
