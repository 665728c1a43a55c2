package driven

import (
	"context"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// Fetcher retrieves CSV extracts from the upstream source.
// Failures are returned as *domain.FetchError.
type Fetcher interface {
	// FetchArchive downloads the archive for a fiscal year.
	// A year with no archive upstream fails with an error wrapping domain.ErrNotFound.
	FetchArchive(ctx context.Context, year int) (*domain.Extract, error)

	// FetchLatest downloads the latest full extract, or returns an Empty
	// extract when the source reports nothing new since the watermark.
	FetchLatest(ctx context.Context, since domain.Watermark) (*domain.Extract, error)
}

// DownloadCache is the on-disk cache a Fetcher downloads into.
type DownloadCache interface {
	// ClearPartial removes downloads left behind by an interrupted run.
	// It must only be called while no sync is running.
	ClearPartial() error
}

// FileOpener describes a local CSV file as an extract, for imports.
type FileOpener interface {
	// OpenFile fails with an error wrapping domain.ErrNotFound if path does not exist.
	OpenFile(ctx context.Context, path string) (*domain.Extract, error)
}
