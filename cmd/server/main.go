package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"payshield-service/internal/config"
	"payshield-service/internal/factory"
	"payshield-service/internal/repository/postgres"
	"payshield-service/internal/storage"
	"payshield-service/internal/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "payshield",
		Short:        "PayShield badge storage service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			return config.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")

	root.AddCommand(newServeCmd(), newSweepCmd(), newHealthCmd(), newMigrateCmd())
	return root
}

// signalContext is cancelled on SIGINT, SIGTERM or SIGQUIT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired OAuth tokens once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			f, err := factory.NewFactory(ctx, config.LoadConfig())
			if err != nil {
				return err
			}
			defer f.Close()

			purged, err := f.Maintenance().Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired oauth tokens\n", purged)
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every dependency and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			f, err := factory.NewFactory(ctx, config.LoadConfig())
			if err != nil {
				return err
			}
			defer f.Close()

			report := newHealthReport(f.Health().Check(ctx), f.HealthCheck(ctx))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Postgres {
				return fmt.Errorf("postgres unreachable")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall probe timeout")
	return cmd
}

// healthReport is the layer status plus the error of every dependency probe
// that failed, keyed by dependency name.
type healthReport struct {
	storage.HealthStatus
	Failures map[string]string `json:"failures,omitempty"`
}

func newHealthReport(status storage.HealthStatus, errs map[string]error) healthReport {
	report := healthReport{HealthStatus: status}
	if len(errs) == 0 {
		return report
	}
	report.Failures = make(map[string]string, len(errs))
	for name, err := range errs {
		report.Failures[name] = err.Error()
	}
	return report
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg := config.LoadConfig()
			cfg.Postgres.AutoMigrate = false
			f, err := factory.NewFactory(ctx, cfg)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := f.Store().Migrate(ctx, postgres.Migrations()); err != nil {
				return err
			}
			util.Info("schema is up to date")
			return nil
		},
	}
}
