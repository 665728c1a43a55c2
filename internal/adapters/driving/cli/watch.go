package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Import extracts dropped into a directory",
	Long: `Watches a directory and imports every CSV extract written to it, one
at a time. Runs until interrupted. A failed import is logged and the watch
continues.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	if watchFunc == nil {
		return errors.New("directory watch not configured")
	}

	ctx := cmd.Context()
	paths, err := watchFunc(ctx, args[0])
	if err != nil {
		return fmt.Errorf("watch %s: %w", args[0], err)
	}

	cmd.Printf("Watching %s for extracts (Ctrl+C to stop)...\n", args[0])
	for path := range paths {
		report, err := syncService.Import(ctx, path)
		if err != nil {
			logger.Error("import %s: %v", path, err)
			continue
		}
		cmd.Printf("Imported %s: %d new, %d updated, %d discarded\n",
			path, report.Inserted, report.Updated, report.DiscardedTotal())
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
