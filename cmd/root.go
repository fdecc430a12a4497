// Package cmd defines and implements the CLI commands for the pagevault
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagevault/pagevault/internal/app"
	"github.com/pagevault/pagevault/internal/config"
	"github.com/pagevault/pagevault/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It is a variable so tests can replace
// it with a factory that builds against fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagevault",
		Short: "Scheduled capture of protected web pages through a solving proxy.",
		Long: `pagevault fetches web pages that sit behind anti-bot challenges. Every
request goes through a FlareSolverr-compatible solving proxy; solved browser
sessions are kept per target and reused across runs, and the raw HTML of each
capture is persisted to local disk, GCS, or memory.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE: load
		// config, build the logger, then assemble the full service graph.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newFetchCmd())

	return cmd
}

// resolveApp retrieves the App injected by the root command's pre-run hook.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// closeApp shuts the app down under a fresh context so sessions are
// destroyed even when the command's own context is already cancelled.
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Close(ctx)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
