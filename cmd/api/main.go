package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pranshlabs/storefront-backend/api/controllers"
	"github.com/pranshlabs/storefront-backend/api/routes"
	"github.com/pranshlabs/storefront-backend/internal/cart"
	"github.com/pranshlabs/storefront-backend/internal/catalog"
	checkoutsvc "github.com/pranshlabs/storefront-backend/internal/checkout"
	"github.com/pranshlabs/storefront-backend/internal/favorites"
	"github.com/pranshlabs/storefront-backend/internal/localstore"
	"github.com/pranshlabs/storefront-backend/internal/session"
	"github.com/pranshlabs/storefront-backend/pkg/config"
	"github.com/pranshlabs/storefront-backend/pkg/db"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/pranshlabs/storefront-backend/pkg/metrics"
	"github.com/pranshlabs/storefront-backend/pkg/migrate"
	"github.com/pranshlabs/storefront-backend/pkg/redis"
	"github.com/pranshlabs/storefront-backend/pkg/sanity"
	stripeclient "github.com/pranshlabs/storefront-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sanityClient, err := sanity.New(cfg.Sanity, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap content store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	syncMetrics := metrics.NewSyncMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	cartGuest, err := localstore.New(localstore.Config[cart.Item]{
		Kind:         "cart",
		Expiry:       cfg.Cart.ExpiryWindow,
		StateKey:     func(deviceID string) string { return redisClient.GuestStateKey("cart", deviceID) },
		TimestampKey: func(deviceID string) string { return redisClient.GuestTimestampKey("cart", deviceID) },
		ValidEntry:   cart.Item.Valid,
		KV:           redisClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire guest cart storage", err)
		os.Exit(1)
	}

	favoritesGuest, err := localstore.New(localstore.Config[favorites.Item]{
		Kind:         "favorites",
		Expiry:       cfg.Favorites.ExpiryWindow,
		StateKey:     func(deviceID string) string { return redisClient.GuestStateKey("favorites", deviceID) },
		TimestampKey: func(deviceID string) string { return redisClient.GuestTimestampKey("favorites", deviceID) },
		ValidEntry:   favorites.Item.Valid,
		KV:           redisClient,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire guest favorites storage", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Source: sanityClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	manager, err := session.NewManager(session.ManagerParams{
		CartRemote:      cart.NewRepository(dbClient.DB()),
		CartGuest:       cartGuest,
		FavoritesRemote: favorites.NewRepository(dbClient.DB()),
		FavoritesGuest:  favoritesGuest,
		CartValidate: func(ctx context.Context, items []cart.Item) []cart.Item {
			return catalogService.ValidateItems(ctx, items, false)
		},
		Logger:                logg,
		Metrics:               syncMetrics,
		CartSyncInterval:      cfg.Cart.SyncInterval,
		FavoritesSyncInterval: cfg.Favorites.SyncInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}
	defer manager.Close()

	var payments checkoutsvc.Payments
	if cfg.Stripe.APIKey != "" {
		client, err := stripeclient.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap payment processor", err)
			os.Exit(1)
		}
		payments = client
	} else {
		logg.Warn(context.Background(), "stripe api key not set, checkout disabled")
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Catalog:  sanityClient,
		Payments: payments,
		Config:   cfg.Checkout,
		Stripe:   cfg.Stripe,
		Logger:   logg,
		Metrics:  checkoutMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:          cfg,
		Logger:          logg,
		Manager:         manager,
		CatalogService:  catalogService,
		CheckoutService: checkoutService,
		Health: controllers.HealthDeps{
			Postgres: dbClient,
			Redis:    redisClient,
			Catalog:  sanityClient,
		},
		Gatherer: registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
