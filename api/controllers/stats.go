package controllers

import (
	"net/http"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/internal/stats"
	"github.com/wishlane/wishlane-backend/pkg/logger"
)

// LandingStats serves the public landing page summary.
func LandingStats(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Landing(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
