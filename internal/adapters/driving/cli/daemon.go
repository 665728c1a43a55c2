package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled updates in the foreground",
	Long: `Runs the built-in scheduler: the incremental update every
scheduler.incremental_interval and store optimisation every
scheduler.optimize_interval. Task state survives restarts. Stops on
SIGINT or SIGTERM after the running task finishes.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx := cmd.Context()
	logger.Info("daemon: scheduler started")

	// Start blocks until ctx is cancelled; Stop then waits for a running task.
	err := scheduler.Start(ctx)
	if stopErr := scheduler.Stop(); stopErr != nil {
		logger.Warn("daemon: stop: %v", stopErr)
	}
	logger.Info("daemon: scheduler stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}
