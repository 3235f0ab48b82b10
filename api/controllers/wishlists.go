package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/api/validators"
	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/internal/wishlists"
	"github.com/wishlane/wishlane-backend/pkg/enums"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
	"github.com/wishlane/wishlane-backend/pkg/pagination"
)

// WishlistCreate creates a wishlist owned by the caller.
func WishlistCreate(svc wishlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body wishlists.CreateWishlistInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), ownerID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// WishlistList returns the caller's wishlists, newest first.
func WishlistList(svc wishlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListMine(r.Context(), ownerID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// WishlistGetBySlug is the public share-link lookup. Private lists are
// only visible to their owner.
func WishlistGetBySlug(svc wishlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug required"))
			return
		}

		wishlist, err := svc.GetBySlug(r.Context(), slug, viewerID(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wishlist)
	}
}

// WishlistUpdate applies a partial edit. Only the owner may edit.
func WishlistUpdate(svc wishlists.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body wishlists.UpdateWishlistInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), ownerID, wishlistID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// WishlistDelete removes the wishlist and announces the removal of each
// gift to any live subscribers.
func WishlistDelete(svc wishlists.Service, publisher ledger.Publisher, logg *logger.Logger) http.HandlerFunc {
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

		giftIDs, err := svc.Delete(r.Context(), ownerID, wishlistID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if publisher != nil {
			for _, giftID := range giftIDs {
				publisher.Publish(r.Context(), hub.NewEvent(enums.EventGiftRemoved, giftID, wishlistID, nil))
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
