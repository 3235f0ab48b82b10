package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wishlane/wishlane-backend/api/routes"
	"github.com/wishlane/wishlane-backend/internal/auth"
	"github.com/wishlane/wishlane-backend/internal/gifts"
	"github.com/wishlane/wishlane-backend/internal/hub"
	"github.com/wishlane/wishlane-backend/internal/ledger"
	"github.com/wishlane/wishlane-backend/internal/metadata"
	"github.com/wishlane/wishlane-backend/internal/stats"
	"github.com/wishlane/wishlane-backend/internal/users"
	"github.com/wishlane/wishlane-backend/internal/wishlists"
	"github.com/wishlane/wishlane-backend/pkg/auth/session"
	"github.com/wishlane/wishlane-backend/pkg/config"
	"github.com/wishlane/wishlane-backend/pkg/db"
	"github.com/wishlane/wishlane-backend/pkg/logger"
	"github.com/wishlane/wishlane-backend/pkg/metrics"
	"github.com/wishlane/wishlane-backend/pkg/migrate"
	"github.com/wishlane/wishlane-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	eventHub, err := hub.New(cfg.Hub, logg, metrics.NewHubMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(context.Background(), "failed to create event hub", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DB:        dbClient.DB(),
		Repo:      ledger.NewRepository(dbClient.DB()),
		Publisher: eventHub,
		Metrics:   metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
		Config:    cfg.Reservations,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gift ledger", err)
		os.Exit(1)
	}

	wishlistRepo := wishlists.NewRepository(dbClient.DB())
	wishlistService, err := wishlists.NewService(wishlistRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist service", err)
		os.Exit(1)
	}

	giftService, err := gifts.NewService(gifts.ServiceParams{
		Repo:      gifts.NewRepository(dbClient.DB()),
		Wishlists: wishlistRepo,
		Ledger:    ledgerService,
		Publisher: eventHub,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gift service", err)
		os.Exit(1)
	}

	statsService, err := stats.NewService(stats.ServiceParams{
		DB:     dbClient.DB(),
		Cache:  redisClient,
		Logger: logg,
		Config: cfg.Stats,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stats service", err)
		os.Exit(1)
	}

	metadataService, err := metadata.NewService(metadata.ServiceParams{
		Logger: logg,
		Config: cfg.Metadata,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create metadata service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Sessions:        sessionManager,
			AuthService:     authService,
			RegisterService: registerService,
			Wishlists:       wishlistService,
			Gifts:           giftService,
			Ledger:          ledgerService,
			Stats:           statsService,
			Metadata:        metadataService,
			Hub:             eventHub,
		}),
	}

	// SSE streams hold connections open, so shut down on signal and give
	// subscribers a window to drain.
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
