package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/palletwine/palletwine-backend/internal/bootstrap"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
	"github.com/palletwine/palletwine-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := bootstrap.Start(ctx, serviceKind)
	if err != nil {
		bootstrap.Fatal(serviceKind, "bootstrap failed", err)
	}
	cfg, logg := proc.Config, proc.Logger
	ctx = logg.WithField(proc.Context(ctx), "topic", cfg.PubSub.PalletEventsTopic)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		proc.Exit(ctx, "failed to bootstrap pubsub", err)
	}
	proc.OnClose("pubsub", pubsubClient.Close)

	registry := bootstrap.NewRegistry()
	if _, err := bootstrap.ServeMetrics(ctx, cfg.Service.MetricsAddr, registry, logg); err != nil {
		proc.Exit(ctx, "failed to start metrics listener", err)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         proc.DB,
		Sink:       pubsubClient,
		Repository: outbox.NewRepository(proc.DB.DB()),
		Metrics:    metrics.NewOutboxMetrics(registry),
	})
	if err != nil {
		proc.Exit(ctx, "failed to create outbox publisher", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	proc.Close(ctx)
}
