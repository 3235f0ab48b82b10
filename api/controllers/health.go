package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/wishlane/wishlane-backend/api/responses"
	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/db"
	"github.com/wishlane/wishlane-backend/pkg/logger"
	pkgerrors "github.com/wishlane/wishlane-backend/pkg/errors"
)

type redisPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Wishlane-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when both backing stores answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cache redisPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Wishlane-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if err := dbP.Ping(ctx); err != nil {
			checks["database"] = "down"
			healthy = false
			logg.Error(ctx, "readiness: database ping failed", err)
		} else {
			checks["database"] = "ok"
		}

		if err := cache.Ping(ctx); err != nil {
			checks["redis"] = "down"
			healthy = false
			logg.Error(ctx, "readiness: redis ping failed", err)
		} else {
			checks["redis"] = "ok"
		}

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "a backing service is unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, checks)
	}
}
