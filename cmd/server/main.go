package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpadapter "exposurewatch/internal/adapters/http"
	"exposurewatch/internal/app"
	"exposurewatch/internal/config"
	"exposurewatch/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := serve(); err != nil {
		fmt.Fprintf(os.Stderr, "exposurewatch: %v\n", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New("exposurewatch", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.Build(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	api := httpadapter.New(httpadapter.Options{
		Reconciler:     a.Reconciler,
		Dashboards:     a.Dashboards,
		Resolutions:    a.DB,
		Jobs:           a.DB,
		Subscribers:    a.DB,
		JobMetrics:     a.Metrics,
		Health:         a.DB.Ping,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:         log,
		WebhookSecret:  cfg.WebhookSecret,
		DefaultCountry: cfg.DefaultCountry,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var g run.Group
	g.Add(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		_ = srv.Shutdown(sctx)
	})

	if cfg.SyncWorkers > 0 {
		runCtx, runCancel := context.WithCancel(ctx)
		g.Add(func() error {
			return a.Runner.Run(runCtx)
		}, func(error) {
			runCancel()
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
