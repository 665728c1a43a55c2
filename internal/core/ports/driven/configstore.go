package driven

import "time"

// ConfigStore is a flat key/value view of config.toml with dotted keys
// such as "sync.batch_size". Environment overrides are visible to the
// getters but are never persisted by Set or Save.
//
// Typed getters return the zero value for a missing or unconvertible key.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetFloat(key string) float64

	// GetDuration accepts Go duration syntax ("90s", "24h").
	GetDuration(key string) time.Duration

	// GetStringSlice accepts a TOML array or a comma-separated string.
	GetStringSlice(key string) []string

	// Set stores value and writes the file.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path returns the config file location.
	Path() string
}
