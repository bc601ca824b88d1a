// Package bootstrap holds the startup and teardown steps shared by the api,
// cron-worker and outbox-publisher binaries.
package bootstrap

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"

	"github.com/palletwine/palletwine-backend/pkg/config"
	"github.com/palletwine/palletwine-backend/pkg/db"
	"github.com/palletwine/palletwine-backend/pkg/instance"
	"github.com/palletwine/palletwine-backend/pkg/logger"
	"github.com/palletwine/palletwine-backend/pkg/migrate"
	"github.com/palletwine/palletwine-backend/pkg/redis"
)

// Process is a booted binary: config and logger are loaded, the database
// is open and dev migrations have run.
type Process struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *db.Client

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env and config, builds the logger for kind and opens the
// database.
func Start(ctx context.Context, kind string) (*Process, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = kind

	p := &Process{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}

	p.DB, err = db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, p.Logger)
	if err != nil {
		return nil, err
	}
	p.OnClose("database", p.DB.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, p.Logger, p.DB); err != nil {
		p.Close(ctx)
		return nil, err
	}
	return p, nil
}

// Redis connects the shared redis client and schedules its shutdown.
func (p *Process) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, err
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

// OnClose registers fn to run on Close. Closers run in reverse order.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close runs every registered closer once, logging failures.
func (p *Process) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil && p.Logger != nil {
			p.Logger.Error(p.Logger.WithField(ctx, "resource", c.name), "close failed", err)
		}
	}
	p.closers = nil
}

// Context decorates ctx with the fields every log line of the process
// carries.
func (p *Process) Context(ctx context.Context) context.Context {
	return p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"instance":    instance.ID(),
		"serviceKind": p.Config.Service.Kind,
	})
}

// Exit logs err, releases resources and terminates with status 1.
func (p *Process) Exit(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	p.Close(ctx)
	os.Exit(1)
}

// Fatal is for failures before a Process exists.
func Fatal(kind, msg string, err error) {
	logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), msg, err)
	os.Exit(1)
}
