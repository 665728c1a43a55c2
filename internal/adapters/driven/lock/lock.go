// Package lock provides a cross-process run lock on the data directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure FileLock implements the interface.
var _ driven.RunLock = (*FileLock)(nil)

// FileName is the lock file created in the data directory.
const FileName = "afrisam.lock"

// errLocked is returned by the platform lock when another process holds it.
var errLocked = errors.New("locked")

// FileLock is an advisory lock on <data_dir>/afrisam.lock.
// The lock is released by the OS if the holder dies.
type FileLock struct {
	path string
}

// New creates a lock for dataDir.
func New(dataDir string) *FileLock {
	return &FileLock{path: filepath.Join(dataDir, FileName)}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// TryLock acquires the lock without blocking.
func (l *FileLock) TryLock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := tryLock(f); err != nil {
		holder := readHolder(f)
		_ = f.Close()
		if errors.Is(err, errLocked) {
			return nil, &domain.ConcurrencyError{Holder: holder}
		}
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}

	// Record the holder for the error message another process will print.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return func() error {
		_ = f.Truncate(0)
		unlockErr := unlock(f)
		return errors.Join(unlockErr, f.Close())
	}, nil
}

func readHolder(f *os.File) string {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid := strings.TrimSpace(string(buf[:n]))
	if pid == "" {
		return f.Name()
	}
	return "pid " + pid
}
