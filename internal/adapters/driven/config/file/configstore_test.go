package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DataDirFromEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("AFRISAM_DATA_DIR", tmpDir)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("store.dsn", "postgres://localhost/afrisam"))
	require.NoError(t, store.Set("sync.batch_size", 2000))
	require.NoError(t, store.Set("sync.force_update", true))
	require.NoError(t, store.Set("sync.min_interval", 12*time.Hour))
	require.NoError(t, store.Set("source.requests_per_second", 0.5))
	require.NoError(t, store.Set("events.brokers", []string{"kafka-1:9092", "kafka-2:9092"}))

	assert.Equal(t, "postgres://localhost/afrisam", store.GetString("store.dsn"))
	assert.Equal(t, 2000, store.GetInt("sync.batch_size"))
	assert.True(t, store.GetBool("sync.force_update"))
	assert.Equal(t, 12*time.Hour, store.GetDuration("sync.min_interval"))
	assert.InDelta(t, 0.5, store.GetFloat("source.requests_per_second"), 1e-9)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, store.GetStringSlice("events.brokers"))

	val, ok := store.Get("store.dsn")
	assert.True(t, ok)
	assert.Equal(t, "postgres://localhost/afrisam", val)
}

func TestConfigStore_MissingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Get("nonexistent")
	assert.False(t, ok)
	assert.Equal(t, "", store.GetString("nonexistent"))
	assert.Equal(t, 0, store.GetInt("nonexistent"))
	assert.False(t, store.GetBool("nonexistent"))
	assert.Zero(t, store.GetDuration("nonexistent"))
	assert.Nil(t, store.GetStringSlice("nonexistent"))
}

func TestConfigStore_Persistence(t *testing.T) {
	tmpDir := t.TempDir()

	store1, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store1.Set("bootstrap.start_year", 2015))
	require.NoError(t, store1.Set("stats.redis_addr", "localhost:6379"))

	store2, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 2015, store2.GetInt("bootstrap.start_year"))
	assert.Equal(t, "localhost:6379", store2.GetString("stats.redis_addr"))

	info, err := os.Stat(store2.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("store.dsn", "sqlite:///tmp/file.db"))

	t.Setenv("AFRISAM_STORE_DSN", "postgres://env/afrisam")
	t.Setenv("AFRISAM_FORCE_UPDATE", "true")
	t.Setenv("AFRISAM_EVENTS_BROKERS", "a:9092, b:9092")

	assert.Equal(t, "postgres://env/afrisam", store.GetString("store.dsn"))
	assert.True(t, store.GetBool("force_update"))
	assert.Equal(t, []string{"a:9092", "b:9092"}, store.GetStringSlice("events.brokers"))

	// Overrides never reach the file.
	require.NoError(t, store.Save())
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "sqlite:///tmp/file.db")
	assert.NotContains(t, string(data), "postgres://env/afrisam")
}

func TestConfigStore_LoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not = [valid"), 0o600))

	_, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
}
