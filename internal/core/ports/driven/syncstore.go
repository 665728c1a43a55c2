package driven

import (
	"context"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// SyncStateStore persists the sync watermark and bootstrap progress.
// The sync engine is the only writer.
type SyncStateStore interface {
	// Watermark returns the last committed watermark, or the zero value.
	Watermark(ctx context.Context) (domain.Watermark, error)

	// SaveWatermark durably replaces the watermark.
	SaveWatermark(ctx context.Context, w domain.Watermark) error

	// Bootstrap returns the in-flight bootstrap marker, or nil if none exists.
	Bootstrap(ctx context.Context) (*domain.BootstrapProgress, error)

	// SaveBootstrap durably replaces the bootstrap marker.
	SaveBootstrap(ctx context.Context, p domain.BootstrapProgress) error

	// ClearBootstrap removes the bootstrap marker.
	ClearBootstrap(ctx context.Context) error

	// Reset removes both the watermark and the bootstrap marker.
	Reset(ctx context.Context) error
}
