package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	pg "exposurewatch/internal/adapters/postgres"
	"exposurewatch/internal/app"
)

var (
	subscriberID    int64
	syncConcurrency int
	country         string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := pg.ConnectWithRetry(cmd.Context(), cfg.DatabaseURL, 30*time.Second, log)
		if err != nil {
			return err
		}
		defer db.Close()
		version, err := db.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Sync one subscriber with every configured provider",
	Example: `  exposurectl sync --subscriber 42`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if subscriberID <= 0 {
			return errors.New("--subscriber is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			results, err := a.Reconciler.SyncSubscriber(ctx, subscriberID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				switch {
				case r.Skipped:
					fmt.Fprintf(out, "%s: skipped\n", r.Key.Provider)
				case r.Stale():
					fmt.Fprintf(out, "%s: stale (%s: %v)\n", r.Key.Provider, r.SourceStage, r.SourceErr)
				default:
					fmt.Fprintf(out, "%s: %d/%d scans changed, %d/%d records changed\n",
						r.Key.Provider, r.ScansChanged, r.ScansSeen, r.RecordsChanged, r.RecordsSeen)
				}
			}
			return nil
		})
	},
}

var syncAllCmd = &cobra.Command{
	Use:   "sync-all",
	Short: "Sync every subscriber holding a provider identifier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Reconciler.SyncAll(ctx, syncConcurrency)
			fmt.Fprintf(cmd.OutOrStdout(), "subscribers=%d stale=%d failed=%d\n", stats.Subscribers, stats.Stale, stats.Failed)
			return err
		})
	},
}

var syncBrokersCmd = &cobra.Command{
	Use:   "sync-brokers",
	Short: "Refresh the broker catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Reconciler.SyncBrokers(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d brokers changed\n", n)
			return nil
		})
	},
}

var nextStepCmd = &cobra.Command{
	Use:     "next-step",
	Short:   "Print the next remediation step for a subscriber",
	Example: `  exposurectl next-step --subscriber 42 --country us`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if subscriberID <= 0 {
			return errors.New("--subscriber is required")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			step, err := a.Dashboards.NextStep(ctx, subscriberID, country)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s", step.Destination)
			if step.Count > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " count=%d", step.Count)
			}
			if step.Focus != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " focus=%s", step.Focus)
			}
			if step.FreeScanOffer != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " offer=%s", step.FreeScanOffer)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

var processJobsCmd = &cobra.Command{
	Use:   "process-jobs",
	Short: "Run queued sync jobs until the queue is empty",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Runner.Drain(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%d jobs processed\n", n)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, syncCmd, syncAllCmd, syncBrokersCmd, nextStepCmd, processJobsCmd)

	syncCmd.Flags().Int64Var(&subscriberID, "subscriber", 0, "Subscriber id")
	nextStepCmd.Flags().Int64Var(&subscriberID, "subscriber", 0, "Subscriber id")
	nextStepCmd.Flags().StringVar(&country, "country", "us", "Two-letter country code")
	syncAllCmd.Flags().IntVar(&syncConcurrency, "concurrency", 4, "Subscribers synced in parallel")
}
