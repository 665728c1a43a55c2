package driven

import (
	"context"
	"iter"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// RecordStore is the indexed, deduplicated store of opportunity records.
// Implementations return *domain.StorageError for persistence failures.
type RecordStore interface {
	// Upsert merges a batch atomically. New IDs are inserted; known IDs
	// only have their status fields updated, and only when they changed.
	// On error nothing from the batch is visible.
	Upsert(ctx context.Context, records []domain.Opportunity) (domain.UpsertResult, error)

	// Query lazily yields matching records ordered by posted date descending.
	// Rows that cannot be decoded are skipped and logged.
	Query(ctx context.Context, filter domain.Filter) iter.Seq2[domain.Opportunity, error]

	// Get retrieves a single record by ID.
	// Returns domain.ErrNotFound if the record does not exist.
	Get(ctx context.Context, id string) (*domain.Opportunity, error)

	// Statistics computes aggregate counts with recency windows ending at now.
	Statistics(ctx context.Context, now time.Time) (domain.Statistics, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// Optimize reclaims space and refreshes planner statistics.
	Optimize(ctx context.Context) error

	// PurgeUnresolved deletes records whose raw country keep rejects.
	// Returns the number of deleted records.
	PurgeUnresolved(ctx context.Context, keep func(rawCountry string) bool) (int, error)

	// Close releases the underlying connection.
	Close() error
}
