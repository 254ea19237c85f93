// Package app wires configuration, storage, provider adapters and services
// into the object graph shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"exposurewatch/internal/adapters/apiclient"
	"exposurewatch/internal/adapters/brokerscan"
	"exposurewatch/internal/adapters/legacyscan"
	pg "exposurewatch/internal/adapters/postgres"
	"exposurewatch/internal/config"
	"exposurewatch/internal/metrics"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/remediation"
	"exposurewatch/internal/services/dashboard"
	"exposurewatch/internal/services/reconcile"
	"exposurewatch/internal/tracing"
	"exposurewatch/internal/workers/syncrunner"
)

const connectTimeout = time.Minute

type App struct {
	Config     config.Config
	Log        zerolog.Logger
	DB         *pg.DB
	Metrics    *metrics.Metrics
	Reconciler *reconcile.Service
	Dashboards *dashboard.Service
	Runner     *syncrunner.Runner
}

// Build connects to Postgres, applies migrations and assembles the services.
// Providers without credentials are left out and their keys are skipped.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, reg prometheus.Registerer) (*App, error) {
	db, err := pg.ConnectWithRetry(ctx, cfg.DatabaseURL, connectTimeout, log)
	if err != nil {
		return nil, err
	}

	version, err := db.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Int64("schema_version", version).Msg("database ready")

	m := metrics.New(reg)
	sources, err := Sources(cfg, m, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	rec := reconcile.New(reconcile.Options{
		Sources:     sources,
		Scans:       db,
		Subscribers: db,
		Brokers:     db,
		Metrics:     m,
		Logger:      log,
	})
	dash, err := dashboard.New(dashboard.Options{
		Subscribers: db,
		Scans:       db,
		Breaches:    db,
		Brokers:     db,
		Syncer:      rec,
		Logger:      log,
		Policy: remediation.Policy{
			MaxScansThreshold: cfg.MaxScansThreshold,
			BrokerCoverage:    cfg.BrokerCoverageCount,
		},
		PremiumEnabled:            cfg.PremiumEnabled,
		AdditionalRemovalStatuses: cfg.AdditionalRemovalStatuses,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	runner := syncrunner.New(db, rec, m, log, cfg.SyncWorkers, cfg.SyncPollInterval)

	return &App{
		Config:     cfg,
		Log:        log,
		DB:         db,
		Metrics:    m,
		Reconciler: rec,
		Dashboards: dash,
		Runner:     runner,
	}, nil
}

func (a *App) Close() { a.DB.Close() }

// Sources builds a client for each provider that has credentials.
func Sources(cfg config.Config, m metrics.ProviderMetrics, log zerolog.Logger) ([]ports.ExposureSource, error) {
	base := func(p config.Provider) apiclient.Config {
		return apiclient.Config{
			BaseURL:    p.BaseURL,
			Credential: p.APIKey,
			Timeout:    cfg.ProviderTimeout,
			RPS:        cfg.ProviderRPS,
			Metrics:    m,
			Tracer:     tracing.Tracer("apiclient"),
		}
	}

	var sources []ports.ExposureSource
	legacy, err := legacyscan.New(base(cfg.LegacyScan))
	switch {
	case err == nil:
		sources = append(sources, legacy)
	case errors.Is(err, apiclient.ErrNotConfigured):
		log.Info().Msg("legacy scan provider not configured")
	default:
		return nil, err
	}

	broker, err := brokerscan.New(base(cfg.BrokerScan))
	switch {
	case err == nil:
		sources = append(sources, broker)
	case errors.Is(err, apiclient.ErrNotConfigured):
		log.Info().Msg("broker scan provider not configured")
	default:
		return nil, err
	}
	return sources, nil
}
