package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchError_Is(t *testing.T) {
	err := &FetchError{Op: "archive FY2019", StatusCode: 404, Err: ErrNotFound}

	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, "fetch archive FY2019: HTTP 404: not found", err.Error())
}

func TestFetchError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("segment FY2020: %w", &FetchError{Op: "latest", Attempts: 3, Err: errors.New("connection reset")})

	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestFetchError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want bool
	}{
		{"transport", &FetchError{Err: errors.New("reset")}, true},
		{"timeout", &FetchError{StatusCode: 408}, true},
		{"throttled", &FetchError{StatusCode: 429}, true},
		{"server", &FetchError{StatusCode: 503}, true},
		{"forbidden", &FetchError{StatusCode: 403}, false},
		{"missing", &FetchError{StatusCode: 404, Err: ErrNotFound}, false},
		{"malformed", &FetchError{Err: ErrMalformedExtract}, false},
		{"truncated", &FetchError{StatusCode: 200, Err: ErrTruncated}, true},
		{"corrupt", &FetchError{StatusCode: 206, Err: ErrChecksumMismatch}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("disk full")
	err := &StorageError{Op: "upsert", Err: cause}

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage upsert: disk full", err.Error())
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Line: 12, Field: "PopCountry", Reason: "unresolved country", Err: ErrUnresolvedCountry}

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrUnresolvedCountry)
	assert.Equal(t, "line 12: PopCountry: unresolved country", err.Error())

	noLine := &ValidationError{Field: "Title", Reason: "missing title"}
	assert.Equal(t, "Title: missing title", noLine.Error())
}

func TestConcurrencyError(t *testing.T) {
	err := &ConcurrencyError{Holder: "bootstrap"}

	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, "sync in progress: held by bootstrap", err.Error())
	assert.Equal(t, "sync in progress", (&ConcurrencyError{}).Error())
}
