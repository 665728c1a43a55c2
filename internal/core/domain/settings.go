package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// Upstream locations of the SAM.gov Contract Opportunities extracts.
const (
	DefaultCurrentURL     = "https://sam.gov/api/prod/fileextractservices/v1/api/download/Contract%20Opportunities/datagov/ContractOpportunitiesFullCSV.csv?privacy=Public"
	DefaultCurrentMirror  = "https://falextracts.s3.amazonaws.com/Contract%20Opportunities/datagov/ContractOpportunitiesFullCSV.csv"
	DefaultArchiveBaseURL = "https://sam.gov/api/prod/fileextractservices/v1/api/download/Contract%20Opportunities/Archived%20Data/"
	DefaultArchiveMirror1 = "https://s3.amazonaws.com/falextracts/Contract%20Opportunities/Archived%20Data/"
	DefaultArchiveMirror2 = "https://falextracts.s3.amazonaws.com/Contract%20Opportunities/Archived%20Data/"

	// FirstArchiveYear is the earliest fiscal year with a usable archive.
	FirstArchiveYear = 1998

	// LatestFileName is the file name of the full current extract.
	LatestFileName = "ContractOpportunitiesFullCSV.csv"
)

// ArchiveFileName returns the upstream file name of a fiscal year archive.
func ArchiveFileName(year int) string {
	return fmt.Sprintf("FY%d_archived_opportunities.csv", year)
}

// StoreBackend identifies the record store implementation.
type StoreBackend string

// Available store backends.
const (
	StoreBackendSQLite   StoreBackend = "sqlite"
	StoreBackendPostgres StoreBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendSQLite, StoreBackendPostgres:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the backend.
func (b StoreBackend) Description() string {
	switch b {
	case StoreBackendSQLite:
		return "SQLite (embedded file)"
	case StoreBackendPostgres:
		return "PostgreSQL (server)"
	default:
		return unknownDescription
	}
}

// BackendFromDSN infers the store backend from a DSN.
// Anything without a postgres scheme is treated as a SQLite path.
func BackendFromDSN(dsn string) StoreBackend {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return StoreBackendPostgres
	}
	return StoreBackendSQLite
}

// StoreSettings configures the record store.
type StoreSettings struct {
	// DSN is a postgres:// URL, a sqlite:// path, or empty for <data_dir>/opportunities.db.
	DSN string
}

// SourceSettings configures the upstream fetcher.
type SourceSettings struct {
	CurrentURL     string
	CurrentMirrors []string
	ArchiveBaseURL string
	ArchiveMirrors []string

	// RequestsPerSecond throttles outbound requests.
	RequestsPerSecond float64

	// MaxAttempts bounds retries per URL.
	MaxAttempts int

	// Timeout bounds a single request including the body transfer.
	Timeout time.Duration

	UserAgent string
}

// SyncSettings configures the sync engine.
type SyncSettings struct {
	// BatchSize is the number of records per atomic upsert.
	BatchSize int

	// MinInterval skips an incremental run if the last one committed more recently.
	MinInterval time.Duration

	// Lookback is the default incremental lookback window. Zero keeps all rows.
	Lookback time.Duration

	// ForceUpdate bypasses MinInterval for every run.
	ForceUpdate bool
}

// BootstrapSettings configures the historical load.
type BootstrapSettings struct {
	StartYear      int
	EndYear        int
	IncludeCurrent bool

	// Parallel is the number of segments downloaded ahead of the merge.
	Parallel int
}

// StatsSettings configures the statistics snapshot cache.
type StatsSettings struct {
	TTL time.Duration

	// RedisAddr selects the Redis cache when set. Empty keeps the in-memory cache.
	RedisAddr   string
	RedisPrefix string
}

// EventSettings configures record publication. Empty Brokers disables it.
type EventSettings struct {
	Brokers []string
	Topic   string
}

// CacheSettings configures the download cache.
type CacheSettings struct {
	// KeepLatest is the number of dated copies of the latest extract to keep.
	KeepLatest int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir holds the record store, state file and download cache.
	DataDir string

	Store     StoreSettings
	Source    SourceSettings
	Sync      SyncSettings
	Bootstrap BootstrapSettings
	Stats     StatsSettings
	Events    EventSettings
	Cache     CacheSettings
	Scheduler SchedulerConfig
}

// DefaultAppSettings returns settings with sensible defaults.
// Redis and Kafka are left unconfigured by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Source: SourceSettings{
			CurrentURL:        DefaultCurrentURL,
			CurrentMirrors:    []string{DefaultCurrentMirror},
			ArchiveBaseURL:    DefaultArchiveBaseURL,
			ArchiveMirrors:    []string{DefaultArchiveMirror1, DefaultArchiveMirror2},
			RequestsPerSecond: 2,
			MaxAttempts:       3,
			Timeout:           300 * time.Second,
			UserAgent:         "afrisam/1.0",
		},
		Sync: SyncSettings{
			BatchSize:   5000,
			MinInterval: 20 * time.Hour,
		},
		Bootstrap: BootstrapSettings{
			StartYear:      FirstArchiveYear,
			EndYear:        FiscalYear(time.Now()),
			IncludeCurrent: true,
			Parallel:       2,
		},
		Stats: StatsSettings{
			TTL:         5 * time.Minute,
			RedisPrefix: "afrisam:",
		},
		Events: EventSettings{
			Topic: "afrisam.opportunities",
		},
		Cache: CacheSettings{
			KeepLatest: 3,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}

// Validate checks settings for values the engine cannot run with.
func (s AppSettings) Validate() error {
	if s.Sync.BatchSize <= 0 {
		return fmt.Errorf("%w: sync.batch_size must be positive", ErrInvalidInput)
	}
	if s.Source.MaxAttempts <= 0 {
		return fmt.Errorf("%w: source.max_attempts must be positive", ErrInvalidInput)
	}
	if s.Source.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: source.requests_per_second must be positive", ErrInvalidInput)
	}
	if s.Bootstrap.Parallel <= 0 {
		return fmt.Errorf("%w: bootstrap.parallel must be positive", ErrInvalidInput)
	}
	if len(s.Events.Brokers) > 0 && s.Events.Topic == "" {
		return fmt.Errorf("%w: events.topic is required with brokers", ErrInvalidInput)
	}
	return nil
}
