package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wishlane/wishlane-backend/api/controllers"
	"github.com/wishlane/wishlane-backend/api/middleware"
	"github.com/wishlane/wishlane-backend/internal/auth"
	"github.com/wishlane/wishlane-backend/internal/gifts"
	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/internal/metadata"
	"github.com/wishlane/wishlane-backend/internal/stats"
	"github.com/wishlane/wishlane-backend/internal/wishlists"
	"github.com/wishlane/wishlane-backend/pkg/auth/session"
	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/db"
	"github.com/wishlane/wishlane-backend/pkg/logger"
	pkgredis "github.com/wishlane/wishlane-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *pkgredis.Client
	Sessions sessionManager

	AuthService     auth.Service
	RegisterService auth.RegisterService
	Wishlists       wishlists.Service
	Gifts           gifts.Service
	Ledger          ledger.Service
	Stats           stats.Service
	Metadata        metadata.Service
	Hub             *hub.Hub
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	// A typed-nil *redis.Client must become a nil interface so the
	// middleware pass-through checks work.
	var idemStore pkgredis.IdempotencyStore
	var rateStore middleware.RateLimiterStore
	if d.Redis != nil {
		idemStore = d.Redis
		rateStore = d.Redis
	}
	idempotency := middleware.Idempotency(idemStore, logg)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).
			Post("/login", controllers.AuthLogin(d.AuthService, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, rateStore, logg),
			idempotency,
		).Post("/register", controllers.AuthRegister(d.RegisterService, d.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(d.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Sessions, cfg.JWT, logg))
	})

	// Public surface. OptionalAuth lets logged-in viewers be recognized
	// (owner masking, actor identity) without requiring a token.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, d.Sessions, logg))

		r.Get("/stats", controllers.LandingStats(d.Stats, logg))
		r.Get("/landing/events", controllers.LandingEvents(d.Hub))
		r.Get("/wishlist/{slug}", controllers.WishlistGetBySlug(d.Wishlists, logg))

		r.Route("/wishlists", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
				r.With(idempotency).
					Post("/", controllers.WishlistCreate(d.Wishlists, logg))
				r.Get("/", controllers.WishlistList(d.Wishlists, logg))
				r.Put("/{wishlistID}", controllers.WishlistUpdate(d.Wishlists, logg))
				r.Delete("/{wishlistID}", controllers.WishlistDelete(d.Wishlists, d.Hub, logg))
				r.With(idempotency).
					Post("/{wishlistID}/gifts", controllers.GiftCreate(d.Gifts, logg))
			})

			r.Get("/{wishlistID}/gifts", controllers.GiftList(d.Gifts, logg))
			r.Get("/{wishlistID}/events", controllers.WishlistEvents(d.Hub, d.Wishlists, logg))
		})

		r.Route("/gifts/{giftID}", func(r chi.Router) {
			r.Get("/", controllers.GiftGet(d.Gifts, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
				r.Put("/", controllers.GiftUpdate(d.Gifts, logg))
				r.Delete("/", controllers.GiftDelete(d.Gifts, logg))
			})

			// Reservation and contribution moves accept guests, so they
			// stay behind OptionalAuth only. Idempotency covers retries.
			r.With(idempotency).
				Post("/reserve", controllers.GiftReserve(d.Ledger, logg))
			r.With(idempotency).
				Post("/contributions", controllers.GiftContribute(d.Ledger, logg))
			r.Delete("/reserve", controllers.GiftReservationCancel(d.Ledger, logg))
			r.Delete("/contributions/{contributionID}", controllers.GiftContributionWithdraw(d.Ledger, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
			r.Get("/metadata/parse", controllers.MetadataParse(d.Metadata, logg))
		})
	})

	return r
}
