package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

// Normaliser maps raw CSV rows to canonical opportunity records.
type Normaliser interface {
	// Normalise converts one row. A row that cannot become a record
	// returns a nil record and a *domain.ValidationError with the reason.
	Normalise(row domain.RawRow) (*domain.Opportunity, *domain.ValidationError)
}

// ExtractReader streams rows out of a downloaded extract.
type ExtractReader interface {
	// Rows yields every well-formed row of the extract. A malformed header
	// is reported as a single error wrapping domain.ErrMalformedExtract.
	Rows(ctx context.Context, extract *domain.Extract) iter.Seq2[domain.RawRow, error]
}
