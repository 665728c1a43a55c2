package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/logger"
)

var (
	bootstrapStartYear int
	bootstrapEndYear   int
	bootstrapNoCurrent bool
	bootstrapRestart   bool

	updateLookback time.Duration
	updateForce    bool

	resetYes bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Load the fiscal-year archives",
	Long: `Downloads the SAM.gov fiscal-year archives in order and merges every
opportunity performed in an African country. Finishes with the latest full
extract unless --no-current is given.

An interrupted bootstrap resumes after the last committed year when run
again with the same range. Use --restart to discard progress from a run
with a different range.`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Merge the latest daily extract",
	Long: `Fetches the latest full extract and merges it as one batch. The run is
skipped when the previous sync committed within sync.min_interval, unless
--force is given or AFRISAM_FORCE_UPDATE is true.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a local CSV extract",
	Long:  `Merges a CSV file in the SAM.gov extract format. The watermark is not changed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and watermark",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the watermark and bootstrap progress",
	Long: `Clears the sync watermark and any bootstrap progress marker. Records are
kept. The next update downloads the full extract regardless of age.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	defaults := domain.DefaultAppSettings().Bootstrap
	bootstrapCmd.Flags().IntVar(&bootstrapStartYear, "start-year", 0,
		fmt.Sprintf("first fiscal year (default bootstrap.start_year, %d)", defaults.StartYear))
	bootstrapCmd.Flags().IntVar(&bootstrapEndYear, "end-year", 0,
		"last fiscal year (default bootstrap.end_year, the current fiscal year)")
	bootstrapCmd.Flags().BoolVar(&bootstrapNoCurrent, "no-current", false, "skip the latest extract")
	bootstrapCmd.Flags().BoolVar(&bootstrapRestart, "restart", false, "discard progress from a different range")

	updateCmd.Flags().DurationVar(&updateLookback, "lookback", 0, "ignore rows posted before now-lookback (default sync.lookback)")
	updateCmd.Flags().BoolVarP(&updateForce, "force", "f", false, "run even if the last sync is recent")

	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "confirm the reset")

	rootCmd.AddCommand(bootstrapCmd, updateCmd, importCmd, statusCmd, resetCmd)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}

	opts, err := bootstrapOptions(cmd)
	if err != nil {
		return err
	}

	logger.Section("Bootstrap")
	cmd.Printf("Bootstrapping FY%d-FY%d", opts.StartYear, opts.EndYear)
	if opts.IncludeCurrent {
		cmd.Print(" + current extract")
	}
	cmd.Println("...")

	report, err := runWithProgress(cmd.Context(), cmd, syncService, func(ctx context.Context) (*domain.SyncReport, error) {
		return syncService.Bootstrap(ctx, opts)
	})
	printReport(cmd, report)
	if errors.Is(err, domain.ErrRangeChanged) {
		return fmt.Errorf("bootstrap: %w (rerun with --restart to discard it)", err)
	}
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// bootstrapOptions merges flags over the configured defaults.
func bootstrapOptions(cmd *cobra.Command) (domain.BootstrapOptions, error) {
	defaults := domain.DefaultAppSettings().Bootstrap
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return domain.BootstrapOptions{}, fmt.Errorf("load settings: %w", err)
		}
		defaults = settings.Bootstrap
	}

	opts := domain.BootstrapOptions{
		StartYear:      defaults.StartYear,
		EndYear:        defaults.EndYear,
		IncludeCurrent: defaults.IncludeCurrent,
		Restart:        bootstrapRestart,
	}
	if cmd.Flags().Changed("start-year") {
		opts.StartYear = bootstrapStartYear
	}
	if cmd.Flags().Changed("end-year") {
		opts.EndYear = bootstrapEndYear
	}
	if bootstrapNoCurrent {
		opts.IncludeCurrent = false
	}
	return opts, opts.Validate()
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}

	opts := domain.IncrementalOptions{
		Lookback: updateLookback,
		Force:    updateForce,
	}

	logger.Section("Incremental update")
	report, err := runWithProgress(cmd.Context(), cmd, syncService, func(ctx context.Context) (*domain.SyncReport, error) {
		return syncService.Incremental(ctx, opts)
	})
	printReport(cmd, report)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}

	path := args[0]
	cmd.Printf("Importing %s...\n", path)

	report, err := runWithProgress(cmd.Context(), cmd, syncService, func(ctx context.Context) (*domain.SyncReport, error) {
		return syncService.Import(ctx, path)
	})
	printReport(cmd, report)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}

	status, err := syncService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	cmd.Println("Sync Status")
	cmd.Println("===========")
	cmd.Printf("  Phase:     %s\n", status.Phase)
	if status.Running() {
		cmd.Printf("  Run:       %s (%s) since %s\n", status.RunID, status.Mode,
			status.StartedAt.Local().Format(time.DateTime))
		cmd.Printf("  Segment:   %s\n", status.Segment)
		cmd.Printf("  Progress:  %d rows, %d new, %d updated, %d discarded\n",
			status.RowsRead, status.Inserted, status.Updated, status.Discarded)
	}
	cmd.Printf("  Watermark: %s\n", formatWatermark(status.Watermark))
	if p := status.Bootstrap; p != nil {
		cmd.Printf("  Bootstrap: FY%d-FY%d in progress, completed through FY%d",
			p.StartYear, p.EndYear, p.CompletedThrough)
		if p.IncludeCurrent {
			cmd.Printf(", current extract %s", doneLabel(p.CurrentDone))
		}
		cmd.Println()
	}
	if status.LastError != "" {
		cmd.Printf("  Last error: %s\n", status.LastError)
	}
	return nil
}

func doneLabel(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}

func runReset(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	if !resetYes {
		return errors.New("reset clears the watermark and bootstrap progress; rerun with --yes to confirm")
	}

	if err := syncService.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	cmd.Println("Watermark and bootstrap progress cleared.")
	return nil
}
