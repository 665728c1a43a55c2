package driven

import (
	"context"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// RecordPublisher announces newly inserted records to downstream consumers.
// It is optional; the sync engine treats publish failures as non-fatal.
type RecordPublisher interface {
	Publish(ctx context.Context, runID string, records []domain.Opportunity) error
	Close() error
}
