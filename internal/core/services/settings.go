package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyStoreDSN = "store.dsn"

	keyCurrentURL     = "source.current_url"
	keyCurrentMirrors = "source.current_mirrors"
	keyArchiveBaseURL = "source.archive_base_url"
	keyArchiveMirrors = "source.archive_mirrors"
	keyRPS            = "source.requests_per_second"
	keyMaxAttempts    = "source.max_attempts"
	keyTimeout        = "source.timeout"
	keyUserAgent      = "source.user_agent"

	keyBatchSize   = "sync.batch_size"
	keyMinInterval = "sync.min_interval"
	keyLookback    = "sync.lookback"
	keyForceUpdate = "sync.force_update"

	keyStartYear      = "bootstrap.start_year"
	keyEndYear        = "bootstrap.end_year"
	keyIncludeCurrent = "bootstrap.include_current"
	keyParallel       = "bootstrap.parallel"

	keyStatsTTL    = "stats.ttl"
	keyRedisAddr   = "stats.redis_addr"
	keyRedisPrefix = "stats.redis_prefix"

	keyBrokers = "events.brokers"
	keyTopic   = "events.topic"

	keyKeepLatest = "cache.keep_latest"

	keySchedulerEnabled    = "scheduler.enabled"
	keyIncrementalInterval = "scheduler.incremental_interval"
	keyOptimizeInterval    = "scheduler.optimize_interval"
)

// settingKind is how a setting's value is parsed and stored.
type settingKind int

const (
	kindString settingKind = iota
	kindStrings
	kindInt
	kindPositiveInt
	kindFloat
	kindBool
	kindDuration
)

// settingKeys lists every settable key in display order.
var settingKeys = []struct {
	key  string
	kind settingKind
}{
	{keyStoreDSN, kindString},
	{keyCurrentURL, kindString},
	{keyCurrentMirrors, kindStrings},
	{keyArchiveBaseURL, kindString},
	{keyArchiveMirrors, kindStrings},
	{keyRPS, kindFloat},
	{keyMaxAttempts, kindPositiveInt},
	{keyTimeout, kindDuration},
	{keyUserAgent, kindString},
	{keyBatchSize, kindPositiveInt},
	{keyMinInterval, kindDuration},
	{keyLookback, kindDuration},
	{keyForceUpdate, kindBool},
	{keyStartYear, kindPositiveInt},
	{keyEndYear, kindPositiveInt},
	{keyIncludeCurrent, kindBool},
	{keyParallel, kindPositiveInt},
	{keyStatsTTL, kindDuration},
	{keyRedisAddr, kindString},
	{keyRedisPrefix, kindString},
	{keyBrokers, kindStrings},
	{keyTopic, kindString},
	{keyKeepLatest, kindInt},
	{keySchedulerEnabled, kindBool},
	{keyIncrementalInterval, kindDuration},
	{keyOptimizeInterval, kindDuration},
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	dataDir     string
}

// NewSettingsService creates a new settings service for the given data directory.
func NewSettingsService(configStore driven.ConfigStore, dataDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		dataDir:     dataDir,
	}
}

// Get retrieves current application settings. Keys absent from the
// config store keep their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		DataDir: s.dataDir,
		Store: domain.StoreSettings{
			DSN: s.getString(keyStoreDSN, d.Store.DSN),
		},
		Source: domain.SourceSettings{
			CurrentURL:        s.getString(keyCurrentURL, d.Source.CurrentURL),
			CurrentMirrors:    s.getStrings(keyCurrentMirrors, d.Source.CurrentMirrors),
			ArchiveBaseURL:    s.getString(keyArchiveBaseURL, d.Source.ArchiveBaseURL),
			ArchiveMirrors:    s.getStrings(keyArchiveMirrors, d.Source.ArchiveMirrors),
			RequestsPerSecond: s.getFloat(keyRPS, d.Source.RequestsPerSecond),
			MaxAttempts:       s.getInt(keyMaxAttempts, d.Source.MaxAttempts),
			Timeout:           s.getDuration(keyTimeout, d.Source.Timeout),
			UserAgent:         s.getString(keyUserAgent, d.Source.UserAgent),
		},
		Sync: domain.SyncSettings{
			BatchSize:   s.getInt(keyBatchSize, d.Sync.BatchSize),
			MinInterval: s.getDuration(keyMinInterval, d.Sync.MinInterval),
			Lookback:    s.getDuration(keyLookback, d.Sync.Lookback),
			ForceUpdate: s.getBool(keyForceUpdate, d.Sync.ForceUpdate),
		},
		Bootstrap: domain.BootstrapSettings{
			StartYear:      s.getInt(keyStartYear, d.Bootstrap.StartYear),
			EndYear:        s.getInt(keyEndYear, d.Bootstrap.EndYear),
			IncludeCurrent: s.getBool(keyIncludeCurrent, d.Bootstrap.IncludeCurrent),
			Parallel:       s.getInt(keyParallel, d.Bootstrap.Parallel),
		},
		Stats: domain.StatsSettings{
			TTL:         s.getDuration(keyStatsTTL, d.Stats.TTL),
			RedisAddr:   s.getString(keyRedisAddr, d.Stats.RedisAddr),
			RedisPrefix: s.getString(keyRedisPrefix, d.Stats.RedisPrefix),
		},
		Events: domain.EventSettings{
			Brokers: s.getStrings(keyBrokers, d.Events.Brokers),
			Topic:   s.getString(keyTopic, d.Events.Topic),
		},
		Cache: domain.CacheSettings{
			KeepLatest: s.getInt(keyKeepLatest, d.Cache.KeepLatest),
		},
		Scheduler: s.getScheduler(d.Scheduler),
	}

	return settings, nil
}

func (s *SettingsService) getScheduler(d domain.SchedulerConfig) domain.SchedulerConfig {
	inc := d.GetTaskConfig(domain.TaskIDIncrementalUpdate)
	opt := d.GetTaskConfig(domain.TaskIDOptimize)
	inc.Interval = s.getDuration(keyIncrementalInterval, inc.Interval)
	opt.Interval = s.getDuration(keyOptimizeInterval, opt.Interval)
	inc.Enabled = inc.Interval > 0
	opt.Enabled = opt.Interval > 0

	return domain.SchedulerConfig{
		Enabled: s.getBool(keySchedulerEnabled, d.Enabled),
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDIncrementalUpdate: inc,
			domain.TaskIDOptimize:          opt,
		},
	}
}

// Set parses value for key and persists it.
// String values from the command line are converted to the key's type.
func (s *SettingsService) Set(key string, value any) error {
	kind, ok := lookupKind(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if key == keyStartYear || key == keyEndYear {
		if y := parsed.(int); y < domain.FirstArchiveYear {
			return fmt.Errorf("%w: %s: no archives before FY%d", domain.ErrInvalidInput, key, domain.FirstArchiveYear)
		}
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys lists the settable keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for _, k := range settingKeys {
		keys = append(keys, k.key)
	}
	return keys
}

// Validate checks if current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	d := domain.DefaultAppSettings()
	d.DataDir = s.dataDir
	return d
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// ==================== Parsing ====================

func lookupKind(key string) (settingKind, bool) {
	for _, k := range settingKeys {
		if k.key == key {
			return k.kind, true
		}
	}
	return 0, false
}

//nolint:gocyclo // One branch per kind
func parseSetting(kind settingKind, value any) (any, error) {
	str, isString := value.(string)
	if isString {
		str = strings.TrimSpace(str)
	}

	switch kind {
	case kindString:
		if !isString {
			return nil, fmt.Errorf("expected a string, got %T", value)
		}
		return str, nil

	case kindStrings:
		if list, ok := value.([]string); ok {
			return list, nil
		}
		if !isString {
			return nil, fmt.Errorf("expected a comma-separated list, got %T", value)
		}
		var list []string
		for _, part := range strings.Split(str, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		return list, nil

	case kindInt, kindPositiveInt:
		n, ok := value.(int)
		if isString {
			v, err := strconv.Atoi(str)
			if err != nil {
				return nil, fmt.Errorf("expected an integer: %w", err)
			}
			n, ok = v, true
		}
		if !ok {
			return nil, fmt.Errorf("expected an integer, got %T", value)
		}
		if n < 0 || (kind == kindPositiveInt && n == 0) {
			return nil, fmt.Errorf("must be positive, got %d", n)
		}
		return n, nil

	case kindFloat:
		f, ok := value.(float64)
		if isString {
			v, err := strconv.ParseFloat(str, 64)
			if err != nil {
				return nil, fmt.Errorf("expected a number: %w", err)
			}
			f, ok = v, true
		}
		if !ok || f <= 0 {
			return nil, fmt.Errorf("expected a positive number, got %v", value)
		}
		return f, nil

	case kindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		b, err := strconv.ParseBool(str)
		if err != nil {
			return nil, fmt.Errorf("expected true or false: %w", err)
		}
		return b, nil

	case kindDuration:
		d, ok := value.(time.Duration)
		if isString {
			v, err := time.ParseDuration(str)
			if err != nil {
				return nil, fmt.Errorf("expected a duration such as 24h: %w", err)
			}
			d, ok = v, true
		}
		if !ok || d < 0 {
			return nil, fmt.Errorf("expected a non-negative duration, got %v", value)
		}
		// Stored as text so the config file stays readable.
		return d.String(), nil
	}
	return nil, fmt.Errorf("unsupported setting kind %d", kind)
}

// ==================== Getters with defaults ====================

func (s *SettingsService) has(key string) bool {
	_, ok := s.configStore.Get(key)
	return ok
}

func (s *SettingsService) getString(key, def string) string {
	if !s.has(key) {
		return def
	}
	return s.configStore.GetString(key)
}

func (s *SettingsService) getStrings(key string, def []string) []string {
	if !s.has(key) {
		return def
	}
	return s.configStore.GetStringSlice(key)
}

func (s *SettingsService) getInt(key string, def int) int {
	if !s.has(key) {
		return def
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, def float64) float64 {
	if !s.has(key) {
		return def
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, def bool) bool {
	if !s.has(key) {
		return def
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, def time.Duration) time.Duration {
	if !s.has(key) {
		return def
	}
	return s.configStore.GetDuration(key)
}
