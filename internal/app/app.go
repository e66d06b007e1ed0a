// Package app assembles the attendance store from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"attentrack/internal/attendance"
	"attentrack/internal/config"
	"attentrack/internal/kv"
	"attentrack/internal/logger"
	"attentrack/internal/metrics"
	"attentrack/internal/seed"
	"attentrack/internal/store"
)

// App owns the store and everything that has to be closed with it.
type App struct {
	Config   config.App
	Log      zerolog.Logger
	Registry *prometheus.Registry
	Service  *attendance.Service

	closers []func() error
}

// New wires the relational and local backends into a Service. No connection
// to the relational database is attempted until the first store call.
func New(ctx context.Context, cfg config.App, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(a.Registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	dict, err := a.openDictionary(ctx, cfg.Local)
	if err != nil {
		return nil, err
	}

	var relational attendance.Relational
	if !cfg.Database.Disabled {
		relational = attendance.NewPostgresRepository(PostgresConfig(cfg.Database))
	}
	var seeder attendance.Seeder
	if cfg.SeedOnEmpty {
		seeder = seed.Roster{}
	}

	a.Service = attendance.NewService(relational, attendance.NewLocalRepository(dict), attendance.Options{
		Strict:   cfg.Strict,
		Seeder:   seeder,
		Observer: recorder,
		Logger:   logger.Component(log, "store"),
	})
	a.closers = append(a.closers, func() error {
		a.Service.Close()
		return nil
	})
	return a, nil
}

func (a *App) openDictionary(ctx context.Context, cfg config.Local) (kv.Dictionary, error) {
	switch cfg.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "sqlite":
		db, err := kv.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	case "redis":
		r := kv.OpenRedis(cfg.RedisAddr, cfg.RedisKeyPrefix)
		if !r.Healthy(ctx) {
			a.Log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable, local store calls will fail until it is")
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	default:
		return nil, fmt.Errorf("unknown local backend %q", cfg.Backend)
	}
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// PostgresConfig maps the database section onto the store options.
func PostgresConfig(db config.Database) store.PostgresConfig {
	return store.PostgresConfig{
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password,
		Database:        db.Name,
		SSLMode:         db.SSLMode,
		ConnectionLimit: db.ConnectionLimit,
		ConnectTimeout:  db.ConnectTimeout,
	}
}
