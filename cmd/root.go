// Package cmd defines the CLI commands for the krawler executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oseg/krawler/internal/app"
	"github.com/oseg/krawler/internal/config"
	"github.com/oseg/krawler/internal/logging"
)

var cfgFile string

// appKey stores the built application in the command context.
type appKeyType struct{}

var appKey appKeyType

// newApp is the application factory, a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command. The application is
// built in PersistentPreRunE and torn down in PersistentPostRun, so every
// subcommand sees fully initialized services.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "krawler",
		Short: "A crawler for open-hardware project manifests",
		Long: `krawler walks hosting platforms (GitHub, OSHWA, Thingiverse) looking
for open-hardware manifest files, validates them and archives the results.
Crawls checkpoint their progress and resume where they left off.`,

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (defaults and KRAWLER_* environment variables apply without one)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newFetchersCmd())
	cmd.AddCommand(newValidateCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

// Execute is the main entry point. The passed context carries signal
// cancellation from main.
func Execute(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
