package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates and configures the 'run' subcommand, the long-running
// scheduler service.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs the capture scheduler",
		Long: `Runs every configured task on its cron schedule until no task has a
future occurrence or the process receives SIGINT/SIGTERM. When the status
API is enabled it is served for the lifetime of the scheduler, and solver
sessions are destroyed on every exit path.`,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a)
	logger := a.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if a.Config().Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.Config().Server.Port),
			Handler:           a.APIServer().Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("http server started", zap.Int("port", a.Config().Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	runErr := a.Loop().Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", zap.Error(err))
		}
	}

	// A cancelled context is the normal signal-driven shutdown, not a failure.
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run scheduler: %w", runErr)
	}
	return nil
}
