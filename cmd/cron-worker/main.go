package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/palletwine/palletwine-backend/internal/bootstrap"
	"github.com/palletwine/palletwine-backend/internal/cron"
	"github.com/palletwine/palletwine-backend/internal/reservations"
	"github.com/palletwine/palletwine-backend/pkg/metrics"
	"github.com/palletwine/palletwine-backend/pkg/outbox"
)

const serviceKind = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := bootstrap.Start(ctx, serviceKind)
	if err != nil {
		bootstrap.Fatal(serviceKind, "bootstrap failed", err)
	}
	cfg, logg := proc.Config, proc.Logger
	ctx = logg.WithField(proc.Context(ctx), "interval", cfg.Cron.Interval.String())

	redisClient, err := proc.Redis(ctx)
	if err != nil {
		proc.Exit(ctx, "failed to bootstrap redis", err)
	}

	registry := bootstrap.NewRegistry()
	if _, err := bootstrap.ServeMetrics(ctx, cfg.Service.MetricsAddr, registry, logg); err != nil {
		proc.Exit(ctx, "failed to start metrics listener", err)
	}
	jobMetrics := metrics.NewCronJobMetrics(registry)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.Interval)
	if err != nil {
		proc.Exit(ctx, "failed to create cron lock", err)
	}

	outboxRepo := outbox.NewRepository(proc.DB.DB())
	expiryJob, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:        logg,
		DB:            proc.DB,
		OverdueReader: reservations.NewRepository(proc.DB.DB()),
		Outbox:        outbox.NewService(outboxRepo, logg),
		Metrics:       jobMetrics,
	})
	if err != nil {
		proc.Exit(ctx, "failed to create reservation expiry job", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         proc.DB,
		Repository: outboxRepo,
		Metrics:    jobMetrics,
		Retention:  cfg.Cron.OutboxRetention,
		BatchSize:  cfg.Cron.OutboxRetentionBatch,
	})
	if err != nil {
		proc.Exit(ctx, "failed to create outbox retention job", err)
	}
	jobs, err := cron.NewRegistry(expiryJob, retentionJob)
	if err != nil {
		proc.Exit(ctx, "failed to register cron jobs", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		proc.Exit(ctx, "failed to create cron service", err)
	}

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			proc.Exit(ctx, "cron cycle failed", err)
		}
		proc.Close(ctx)
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	proc.Close(ctx)
}
