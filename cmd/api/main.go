package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/palletwine/palletwine-backend/api/routes"
	"github.com/palletwine/palletwine-backend/internal/address"
	"github.com/palletwine/palletwine-backend/internal/bootstrap"
	"github.com/palletwine/palletwine-backend/internal/cart"
	"github.com/palletwine/palletwine-backend/internal/pallets"
	"github.com/palletwine/palletwine-backend/internal/reservations"
	"github.com/palletwine/palletwine-backend/internal/validation"
	"github.com/palletwine/palletwine-backend/internal/zones"
	"github.com/palletwine/palletwine-backend/pkg/auth/session"
	"github.com/palletwine/palletwine-backend/pkg/config"
	"github.com/palletwine/palletwine-backend/pkg/db"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/maps"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
)

const serviceKind = "api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := bootstrap.Start(ctx, serviceKind)
	if err != nil {
		bootstrap.Fatal(serviceKind, "bootstrap failed", err)
	}
	cfg, logg := proc.Config, proc.Logger

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithField(proc.Context(context.Background()), "addr", addr)

	redisClient, err := proc.Redis(ctx)
	if err != nil {
		proc.Exit(logCtx, "failed to bootstrap redis", err)
	}
	sessionChecker, err := session.NewChecker(redisClient)
	if err != nil {
		proc.Exit(logCtx, "failed to create session checker", err)
	}

	registry := bootstrap.NewRegistry()
	services, err := buildServices(cfg, logg, proc.DB,
		metrics.NewValidationMetrics(registry),
		metrics.NewPalletMetrics(registry),
	)
	if err != nil {
		proc.Exit(logCtx, "failed to wire services", err)
	}

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, proc.DB, redisClient, sessionChecker, metricsHandler, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			proc.Exit(logCtx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}

	proc.Close(logCtx)
	logg.Info(logCtx, "api server stopped")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	validationMetrics *metrics.ValidationMetrics,
	palletMetrics *metrics.PalletMetrics,
) (routes.Services, error) {
	runner := validation.NewRunner(logg, validationMetrics)

	// without an API key the resolver reports geocoding as unavailable
	var resolver address.Resolver
	if cfg.GoogleMaps.Enabled() {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey, maps.WithRegion(cfg.GoogleMaps.Region))
		if err != nil {
			return routes.Services{}, err
		}
		resolver = address.NewResolver(mapsClient)
	} else {
		logg.Warn(context.Background(), "google maps api key missing; addresses must carry coordinates")
		resolver = address.NewResolver(nil)
	}

	reservationRepo := reservations.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	zoneService, err := zones.NewService(zones.ServiceParams{
		Repository: zones.NewRepository(dbClient.DB()),
		Reserved:   reservationRepo,
		Resolver:   resolver,
		Runner:     runner,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartValidator, err := cart.NewValidator(
		cartRepo,
		cart.NewLRUReportCache(cfg.CartValidation.CacheSize, cfg.CartValidation.CacheTTL),
		runner,
	)
	if err != nil {
		return routes.Services{}, err
	}

	palletService, err := pallets.NewService(pallets.ServiceParams{
		Repository:    pallets.NewRepository(dbClient.DB()),
		Reservations:  reservationRepo,
		DB:            dbClient,
		Outbox:        outboxService,
		Metrics:       palletMetrics,
		Logger:        logg,
		PaymentWindow: cfg.Pallet.PaymentWindow,
		AdminOverbook: cfg.Pallet.AdminOverbook,
	})
	if err != nil {
		return routes.Services{}, err
	}

	reservationService, err := reservations.NewService(reservations.ServiceParams{
		Repository: reservationRepo,
		DB:         dbClient,
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Zones:        zoneService,
		CartItems:    cartRepo,
		Cart:         cartValidator,
		Pallets:      palletService,
		Reservations: reservationService,
	}, nil
}
