package driving

import (
	"context"
	"iter"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// QueryService is the read interface used by dashboards and the CLI.
type QueryService interface {
	// Query lazily yields records matching filter.
	Query(ctx context.Context, filter domain.Filter) iter.Seq2[domain.Opportunity, error]

	// Get retrieves one record by ID.
	Get(ctx context.Context, id string) (*domain.Opportunity, error)

	// Statistics returns a snapshot no older than the configured TTL.
	Statistics(ctx context.Context) (*domain.Statistics, error)

	// RefreshStatistics recomputes the snapshot regardless of its age.
	RefreshStatistics(ctx context.Context) (*domain.Statistics, error)
}
