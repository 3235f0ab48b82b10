package controllers

import (
	"net/http"
	"strings"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/internal/wishlists"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

// WishlistEvents streams the wishlist's live events over SSE. Viewers
// of private lists must be the owner; public lists stream to anyone.
func WishlistEvents(h *hub.Hub, svc wishlists.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wishlistID, err := uuidParam(r, "wishlistID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// GetByID does not mask private lists, so check visibility the
		// same way the slug lookup does.
		wishlist, err := svc.GetByID(r.Context(), wishlistID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !wishlist.IsPublic {
			viewer := viewerID(r)
			if viewer == nil || *viewer != wishlist.OwnerID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist not found"))
				return
			}
		}

		sub := h.Subscribe(wishlistID.String())
		// A viewer may also follow the landing feed on the same stream.
		if strings.EqualFold(r.URL.Query().Get("landing"), "true") {
			h.AddLanding(sub)
		}
		h.ServeHTTP(w, r, sub)
	}
}

// LandingEvents streams the public landing feed: contributions and
// fundings across all wishlists.
func LandingEvents(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := h.Subscribe(hub.LandingChannel)
		h.ServeHTTP(w, r, sub)
	}
}
