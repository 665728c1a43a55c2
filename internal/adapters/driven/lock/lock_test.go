package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

func TestFileLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	assert.Equal(t, filepath.Join(dir, FileName), l.Path())

	unlock, err := l.TryLock()
	require.NoError(t, err)

	_, err = New(dir).TryLock()
	var ce *domain.ConcurrencyError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Contains(t, ce.Holder, "pid ")

	require.NoError(t, unlock())

	unlock, err = New(dir).TryLock()
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestFileLock_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	unlock, err := New(dir).TryLock()
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	_, err = os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)
}
