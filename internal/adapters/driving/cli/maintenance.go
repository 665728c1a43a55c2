package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var purgeYes bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Compact the store and refresh planner statistics",
	Args:  cobra.NoArgs,
	RunE:  runOptimize,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete records whose country no longer resolves",
	Long: `Deletes stored records whose raw place-of-performance value no longer
resolves to one of the African countries, for example after the alias
table was tightened.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "confirm the deletion")
	rootCmd.AddCommand(optimizeCmd, purgeCmd)
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}

	cmd.Println("Optimising store...")
	if err := maintenanceService.Optimize(cmd.Context()); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	cmd.Println("Done.")
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if maintenanceService == nil {
		return errors.New("maintenance service not configured")
	}
	if !purgeYes {
		return errors.New("purge deletes records; rerun with --yes to confirm")
	}

	n, err := maintenanceService.PurgeUnresolved(cmd.Context())
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	cmd.Printf("Deleted %d record(s) outside the African country table.\n", n)
	return nil
}
