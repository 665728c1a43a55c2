// Package local serves Contract Opportunities extracts from a directory
// laid out with the upstream file names. It backs offline imports and the
// watch command.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
)

// Ensure Fetcher implements the interfaces.
var (
	_ driven.Fetcher    = (*Fetcher)(nil)
	_ driven.FileOpener = (*Fetcher)(nil)
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("local: fetcher is closed")

// Fetcher reads extracts from a local directory.
type Fetcher struct {
	dir string

	mu     sync.Mutex
	closed bool
}

// New creates a fetcher rooted at dir.
func New(dir string) *Fetcher {
	return &Fetcher{dir: dir}
}

// Dir returns the directory the fetcher reads from.
func (f *Fetcher) Dir() string {
	return f.dir
}

// FetchArchive returns the archive file for year from the directory.
func (f *Fetcher) FetchArchive(ctx context.Context, year int) (*domain.Extract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seg := domain.ArchiveSegment(year)
	ext, err := FileExtract(filepath.Join(f.dir, domain.ArchiveFileName(year)))
	if err != nil {
		return nil, err
	}
	ext.Segment = seg.Label()
	return ext, nil
}

// FetchLatest returns the latest extract, or an empty extract when the
// file has not changed since the watermark.
func (f *Fetcher) FetchLatest(ctx context.Context, since domain.Watermark) (*domain.Extract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext, err := FileExtract(filepath.Join(f.dir, domain.LatestFileName))
	if err != nil {
		return nil, err
	}
	ext.Segment = domain.CurrentSegment().Label()
	if !since.SyncedAt.IsZero() && !ext.LastModified.After(since.SyncedAt) {
		ext.Empty = true
		ext.Path = ""
	}
	return ext, nil
}

// OpenFile describes any CSV file as an extract, regardless of the directory.
func (f *Fetcher) OpenFile(ctx context.Context, path string) (*domain.Extract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FileExtract(path)
}

// FileExtract describes a CSV file on disk as an extract.
// A missing file fails with an error wrapping domain.ErrNotFound; a
// zero-length file is an empty extract.
func FileExtract(path string) (*domain.Extract, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.FetchError{Op: "open " + filepath.Base(path), URL: path, Err: domain.ErrNotFound}
		}
		return nil, &domain.FetchError{Op: "open " + filepath.Base(path), URL: path, Err: err}
	}
	if info.IsDir() {
		return nil, &domain.FetchError{
			Op:  "open " + filepath.Base(path),
			URL: path,
			Err: fmt.Errorf("%w: %s is a directory", domain.ErrMalformedExtract, path),
		}
	}

	ext := &domain.Extract{
		Name:         info.Name(),
		Path:         path,
		Segment:      "file " + info.Name(),
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
	if info.Size() == 0 {
		ext.Empty = true
		ext.Path = ""
	}
	return ext, nil
}

// IsExtractFile reports whether name looks like a CSV extract.
func IsExtractFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".csv") && !strings.HasPrefix(base, ".")
}

// Close stops any active watch.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fetcher) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
