package driving

import (
	"context"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// SyncService keeps the local record store in step with SAM.gov.
// At most one run is active at a time; an overlapping call fails
// immediately with *domain.ConcurrencyError.
type SyncService interface {
	// Bootstrap loads the fiscal-year archives in order, resuming after
	// the last committed segment of an interrupted run with the same range.
	Bootstrap(ctx context.Context, opts domain.BootstrapOptions) (*domain.SyncReport, error)

	// Incremental fetches the latest extract and merges it as one batch.
	Incremental(ctx context.Context, opts domain.IncrementalOptions) (*domain.SyncReport, error)

	// Import merges a local CSV file without touching the watermark.
	Import(ctx context.Context, path string) (*domain.SyncReport, error)

	// Status returns the engine's current state and persisted progress.
	Status(ctx context.Context) (*domain.SyncStatus, error)

	// Reset clears the watermark and any bootstrap marker.
	Reset(ctx context.Context) error
}
