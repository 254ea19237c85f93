package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"exposurewatch/internal/app"
	"exposurewatch/internal/config"
	"exposurewatch/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "exposurectl",
	Short: "Operate the exposure sync service",
	Long: `exposurectl runs one-off operations against the exposure store:
schema migrations, provider syncs, broker catalog refreshes and
sync job draining. Configuration is read from the same environment
variables (and EXPOSURE_CONFIG file) as the server.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	log, err := logging.NewWithWriter(os.Stderr, "exposurectl", cfg.LogLevel, "console")
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	return cfg, log, nil
}

// withApp builds the application graph, runs fn and closes it. The context
// is cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
