// Package cli provides the cobra command tree for afrisam.
//
// Commands reach the core through driving ports only. The ports are built
// lazily by an Initializer so that --data-dir and --verbose apply before any
// store is opened, and commands such as version never touch the store.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// WatchFunc streams the paths of extract files that appear in dir.
type WatchFunc func(ctx context.Context, dir string) (<-chan string, error)

// Services bundles the driving ports used by the commands.
type Services struct {
	Sync        driving.SyncService
	Query       driving.QueryService
	Maintenance driving.MaintenanceService
	Settings    driving.SettingsService
	Scheduler   driving.Scheduler
	Watch       WatchFunc

	// Close releases stores and connections. May be nil.
	Close func() error
}

// Scope tells the initializer how much to wire.
type Scope int

const (
	// ScopeAll opens the record store and every adapter.
	ScopeAll Scope = iota

	// ScopeSettings wires only the settings service, so a broken store
	// DSN can still be fixed with "settings set".
	ScopeSettings
)

// annotationScope marks commands that need less than ScopeAll.
const annotationScope = "afrisam/scope"

// Initializer builds the services for a data directory.
type Initializer func(ctx context.Context, dataDir string, scope Scope) (*Services, error)

var (
	syncService        driving.SyncService
	queryService       driving.QueryService
	maintenanceService driving.MaintenanceService
	settingsService    driving.SettingsService
	scheduler          driving.Scheduler
	watchFunc          WatchFunc
	closeServices      func() error

	initializer Initializer
)

var (
	verbose bool
	jsonLog bool
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "afrisam",
	Short: "Sync SAM.gov contract opportunities for African countries",
	Long: `afrisam keeps a local store of U.S. federal contract opportunities whose
place of performance is one of the 54 African countries.

It loads the fiscal-year archives once (bootstrap), then merges the daily
extract (update). Records can be queried from the command line or served
to dashboards over MCP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default $AFRISAM_DATA_DIR or ~/.afrisam)")
}

// SetInitializer registers the function that wires the services.
func SetInitializer(fn Initializer) {
	initializer = fn
}

// SetServices installs already-built services.
func SetServices(s *Services) {
	syncService = s.Sync
	queryService = s.Query
	maintenanceService = s.Maintenance
	settingsService = s.Settings
	scheduler = s.Scheduler
	watchFunc = s.Watch
	closeServices = s.Close
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion overrides the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetJSON(jsonLog)

	if initializer == nil {
		return nil
	}
	scope := ScopeAll
	if cmd.Annotations[annotationScope] == "settings" {
		scope = ScopeSettings
	}
	services, err := initializer(cmd.Context(), dataDir, scope)
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

// Close releases whatever the initializer opened. Safe to call twice.
func Close() error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

// skipSetup is used as PersistentPreRunE by commands that need no services.
func skipSetup(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	return nil
}
