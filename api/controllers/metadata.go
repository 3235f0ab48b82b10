package controllers

import (
	"net/http"
	"strings"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/internal/metadata"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

// MetadataParse scrapes a product page for gift form autofill.
func MetadataParse(svc metadata.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
		if rawURL == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "url query parameter required"))
			return
		}

		meta, err := svc.Parse(r.Context(), rawURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, meta)
	}
}
