package samgov

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// Ensure Fetcher implements the interface.
var (
	_ driven.Fetcher       = (*Fetcher)(nil)
	_ driven.DownloadCache = (*Fetcher)(nil)
)

const (
	archiveDir = "archives"
	latestDir  = "latest"
)

// Fetcher retrieves extracts from SAM.gov into a local cache directory.
type Fetcher struct {
	cfg    Config
	client *Client
	now    func() time.Time
}

// New creates a SAM.gov fetcher.
func New(cfg Config) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, dir := range []string{archiveDir, latestDir} {
		if err := os.MkdirAll(filepath.Join(cfg.CacheDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	return &Fetcher{cfg: cfg, client: NewClient(cfg), now: time.Now}, nil
}

// FetchArchive downloads the archive for a fiscal year, reusing a completed
// copy from an earlier run.
func (f *Fetcher) FetchArchive(ctx context.Context, year int) (*domain.Extract, error) {
	name := domain.ArchiveFileName(year)
	seg := domain.ArchiveSegment(year)
	dest := filepath.Join(f.cfg.CacheDir, archiveDir, name)

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		logger.Debug("archive %s already cached", name)
		return &domain.Extract{Name: name, Path: dest, Segment: seg.Label(), Size: info.Size(), LastModified: info.ModTime()}, nil
	}

	var urls []string
	for _, base := range append([]string{f.cfg.Source.ArchiveBaseURL}, f.cfg.Source.ArchiveMirrors...) {
		if base != "" {
			urls = append(urls, joinURL(base, name))
		}
	}

	res, err := f.client.Download(ctx, download{
		op:     "archive " + seg.Label(),
		urls:   urls,
		dest:   dest,
		resume: true,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("downloaded %s (%d bytes)", name, res.size)
	ext := &domain.Extract{Name: name, Segment: seg.Label(), Size: res.size, LastModified: res.lastModified}
	if res.size == 0 {
		ext.Empty = true
		return ext, nil
	}
	ext.Path = dest
	return ext, nil
}

// FetchLatest downloads the full current extract unless the source reports
// it unchanged since the watermark.
func (f *Fetcher) FetchLatest(ctx context.Context, since domain.Watermark) (*domain.Extract, error) {
	seg := domain.CurrentSegment()
	dest := filepath.Join(f.cfg.CacheDir, latestDir, domain.LatestFileName)

	var urls []string
	for _, u := range append([]string{f.cfg.Source.CurrentURL}, f.cfg.Source.CurrentMirrors...) {
		if u != "" {
			urls = append(urls, u)
		}
	}

	res, err := f.client.Download(ctx, download{
		op:    "latest",
		urls:  urls,
		dest:  dest,
		since: since.SyncedAt,
	})
	if err != nil {
		return nil, err
	}

	ext := &domain.Extract{Name: domain.LatestFileName, Segment: seg.Label(), Size: res.size, LastModified: res.lastModified}
	if res.notModified || res.size == 0 {
		logger.Info("latest extract unchanged since %s", since.SyncedAt.Format(time.RFC3339))
		ext.Empty = true
		return ext, nil
	}

	logger.Info("downloaded latest extract (%d bytes)", res.size)
	ext.Path = dest
	if err := f.keepDatedCopy(dest); err != nil {
		logger.Warn("keep dated copy: %v", err)
	}
	return ext, nil
}

// joinURL appends name to a base URL, escaping spaces the way the
// upstream paths are written.
func joinURL(base, name string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.ReplaceAll(name, " ", "%20")
}

// ClearPartial removes interrupted downloads from the cache.
func (f *Fetcher) ClearPartial() error {
	var errs []error
	for _, dir := range []string{archiveDir, latestDir} {
		matches, err := filepath.Glob(filepath.Join(f.cfg.CacheDir, dir, "*.part"))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
