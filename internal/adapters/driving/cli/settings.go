package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings stored in config.toml in the data directory.
Environment variables named AFRISAM_<SECTION>_<KEY> override the file,
e.g. AFRISAM_STORE_DSN or AFRISAM_SYNC_BATCH_SIZE.`,
	Annotations: map[string]string{annotationScope: "settings"},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Annotations: map[string]string{annotationScope: "settings"},
	RunE:        runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a setting by its dotted key. Durations use Go syntax (90s, 12h),
lists are comma-separated.

Examples:
  afrisam settings set store.dsn postgres://user@db/afrisam
  afrisam settings set sync.min_interval 12h
  afrisam settings set events.brokers kafka-1:9092,kafka-2:9092`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{annotationScope: "settings"},
	RunE:        runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:         "keys",
	Short:       "List settable keys",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationScope: "settings"},
	RunE:        runSettingsKeys,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("  Config file: %s\n", settingsService.Path())
	cmd.Printf("  Data dir:    %s\n", settings.DataDir)
	cmd.Println()

	cmd.Println("[Store]")
	dsn := settings.Store.DSN
	if dsn == "" {
		dsn = "(default: opportunities.db in the data dir)"
	}
	cmd.Printf("  Backend: %s\n", domain.BackendFromDSN(settings.Store.DSN).Description())
	cmd.Printf("  DSN: %s\n", maskDSN(dsn))
	cmd.Println()

	cmd.Println("[Source]")
	cmd.Printf("  Current URL: %s\n", settings.Source.CurrentURL)
	cmd.Printf("  Current mirrors: %s\n", strings.Join(settings.Source.CurrentMirrors, ", "))
	cmd.Printf("  Archive base URL: %s\n", settings.Source.ArchiveBaseURL)
	cmd.Printf("  Archive mirrors: %s\n", strings.Join(settings.Source.ArchiveMirrors, ", "))
	cmd.Printf("  Requests/second: %g\n", settings.Source.RequestsPerSecond)
	cmd.Printf("  Max attempts: %d\n", settings.Source.MaxAttempts)
	cmd.Printf("  Timeout: %s\n", settings.Source.Timeout)
	cmd.Println()

	cmd.Println("[Sync]")
	cmd.Printf("  Batch size: %d\n", settings.Sync.BatchSize)
	cmd.Printf("  Min interval: %s\n", settings.Sync.MinInterval)
	cmd.Printf("  Lookback: %s\n", durationOrNone(settings.Sync.Lookback))
	cmd.Printf("  Force update: %t\n", settings.Sync.ForceUpdate)
	cmd.Println()

	cmd.Println("[Bootstrap]")
	cmd.Printf("  Years: FY%d-FY%d\n", settings.Bootstrap.StartYear, settings.Bootstrap.EndYear)
	cmd.Printf("  Include current: %t\n", settings.Bootstrap.IncludeCurrent)
	cmd.Printf("  Parallel downloads: %d\n", settings.Bootstrap.Parallel)
	cmd.Println()

	cmd.Println("[Statistics]")
	cmd.Printf("  TTL: %s\n", settings.Stats.TTL)
	if settings.Stats.RedisAddr != "" {
		cmd.Printf("  Cache: redis at %s (prefix %q)\n", settings.Stats.RedisAddr, settings.Stats.RedisPrefix)
	} else {
		cmd.Printf("  Cache: in-memory\n")
	}
	cmd.Println()

	cmd.Println("[Events]")
	if len(settings.Events.Brokers) > 0 {
		cmd.Printf("  Kafka: %s -> %s\n", strings.Join(settings.Events.Brokers, ", "), settings.Events.Topic)
	} else {
		cmd.Printf("  Kafka: disabled\n")
	}
	cmd.Println()

	cmd.Println("[Scheduler]")
	cmd.Printf("  Enabled: %t\n", settings.Scheduler.Enabled)
	for _, id := range domain.BuiltinTaskIDs() {
		task := settings.Scheduler.GetTaskConfig(id)
		interval := "disabled"
		if task.Enabled {
			interval = "every " + task.Interval.String()
		}
		cmd.Printf("  %s: %s\n", domain.TaskName(id), interval)
	}
	cmd.Printf("  Keep latest extracts: %d\n", settings.Cache.KeepLatest)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'afrisam settings set <key> <value>' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	cmd.Printf("%s = %s\n", key, value)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func durationOrNone(d time.Duration) string {
	if d == 0 {
		return "none"
	}
	return d.String()
}

// maskDSN hides the password of a URL-style DSN.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}
