package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// EnvPrefix is prepended to environment overrides, e.g. AFRISAM_STORE_DSN
// overrides store.dsn.
const EnvPrefix = "AFRISAM"

// ConfigFileName is the configuration file within the data directory.
const ConfigFileName = "config.toml"

// ConfigStore is a viper-backed implementation of driven.ConfigStore.
// Values are read from config.toml and overridden by environment variables.
// Set writes only the file layer, so environment overrides never leak to disk.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	v        *viper.Viper

	// file holds the values read from or written to config.toml.
	file *viper.Viper
}

// NewConfigStore creates a config store in dataDir.
// If dataDir is empty, defaults to ~/.afrisam.
func NewConfigStore(dataDir string) (*ConfigStore, error) {
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}

	s := &ConfigStore{filePath: filepath.Join(dataDir, ConfigFileName)}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultDataDir returns $AFRISAM_DATA_DIR or ~/.afrisam.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".afrisam"), nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.v.IsSet(key) {
		return nil, false
	}
	return s.v.Get(key), true
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(key)
}

// GetInt retrieves an integer configuration value.
func (s *ConfigStore) GetInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt(key)
}

// GetBool retrieves a boolean configuration value.
func (s *ConfigStore) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(key)
}

// GetDuration retrieves a duration configuration value.
func (s *ConfigStore) GetDuration(key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetDuration(key)
}

// GetFloat retrieves a float configuration value.
func (s *ConfigStore) GetFloat(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetFloat64(key)
}

// GetStringSlice retrieves a string slice configuration value.
// Environment values are split on commas.
func (s *ConfigStore) GetStringSlice(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.v.IsSet(key) {
		return nil
	}
	if raw, ok := s.v.Get(key).(string); ok {
		if raw == "" {
			return nil
		}
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return s.v.GetStringSlice(key)
}

// Set stores a configuration value and persists immediately.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := value.(time.Duration); ok {
		value = d.String()
	}
	s.file.Set(key, value)
	if err := s.save(); err != nil {
		return err
	}
	return s.rebuild()
}

// Save persists the current configuration to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes the file layer (caller must hold lock).
func (s *ConfigStore) save() error {
	if err := s.file.WriteConfigAs(s.filePath); err != nil {
		return err
	}
	return os.Chmod(s.filePath, 0o600)
}

// Load reads configuration from config.toml. A missing file is not an error.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := viper.New()
	file.SetConfigFile(s.filePath)
	file.SetConfigType("toml")
	if err := file.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	s.file = file
	return s.rebuild()
}

// rebuild layers the environment over the file values (caller must hold lock).
func (s *ConfigStore) rebuild() error {
	v := newEnvViper()
	if err := v.MergeConfigMap(s.file.AllSettings()); err != nil {
		return err
	}
	s.v = v
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
