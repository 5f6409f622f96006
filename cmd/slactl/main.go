// Command slactl runs SLA maintenance tasks against the service desk database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luiscanel/service-desk/internal/bootstrap"
	"github.com/luiscanel/service-desk/internal/config"
	"github.com/luiscanel/service-desk/internal/observability"
)

var (
	logLevel   string
	noSeed     bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "slactl",
	Short:         "Service desk SLA maintenance",
	Long:          "Run breach sweeps, seed SLA policies and inspect ticket SLA standing.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&noSeed, "no-seed", false, "Skip installing default policies on start")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openContainer loads configuration and connects to the stores.
func openContainer(ctx context.Context) (*bootstrap.Container, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}
	if noSeed {
		cfg.SLA.SeedDefaults = false
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return container, logger, nil
}
