package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wishlane/wishlane-backend/api/middleware"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"param": name})
	}
	return id, nil
}

// viewerID returns the authenticated user's id or nil for anonymous
// requests.
func viewerID(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func requireUserID(r *http.Request) (uuid.UUID, error) {
	id := viewerID(r)
	if id == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return *id, nil
}

// actorFromRequest builds the ledger actor for the caller: either the
// authenticated user or an anonymous guest carrying the header token.
// guestName is only honored for anonymous actors.
func actorFromRequest(r *http.Request, guestName string) ledger.Actor {
	if id := viewerID(r); id != nil {
		return ledger.Actor{
			UserID: id,
			Name:   middleware.UserNameFromContext(r.Context()),
		}
	}
	return ledger.Actor{
		GuestToken: middleware.GuestTokenFromContext(r.Context()),
		Name:       guestName,
	}
}
