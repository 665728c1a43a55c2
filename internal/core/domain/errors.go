package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrFetch is the root of all remote retrieval failures.
	ErrFetch = errors.New("fetch failed")

	// ErrStorage is the root of all local persistence failures.
	ErrStorage = errors.New("storage failed")

	// ErrValidation is the root of all row-level rejections.
	ErrValidation = errors.New("validation failed")

	// ErrMalformedExtract indicates a payload that is not a usable CSV extract.
	ErrMalformedExtract = errors.New("malformed extract")

	// ErrTruncated indicates a download ended before the advertised length.
	ErrTruncated = errors.New("truncated download")

	// ErrChecksumMismatch indicates a completed download whose digest disagrees with the server.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnresolvedCountry indicates a place of performance outside the African country table.
	ErrUnresolvedCountry = errors.New("unresolved country")

	// ErrRangeChanged indicates a bootstrap marker exists for a different year range.
	ErrRangeChanged = errors.New("bootstrap range changed")
)

// FetchError describes a failed retrieval from the upstream source.
type FetchError struct {
	// Op names the fetch operation, e.g. "archive FY2019".
	Op string

	// URL is the last URL attempted.
	URL string

	// StatusCode is the final HTTP status, zero for transport failures.
	StatusCode int

	// Attempts is the number of requests made before giving up.
	Attempts int

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the cause and ErrFetch to errors.Is.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// Retryable reports whether the failure is transient.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, ErrNotFound) || errors.Is(e.Err, ErrMalformedExtract) {
		return false
	}
	if errors.Is(e.Err, ErrTruncated) || errors.Is(e.Err, ErrChecksumMismatch) {
		return true
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// StorageError describes a failed operation on the record store or state file.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage " + e.Op
	}
	return "storage " + e.Op + ": " + e.Err.Error()
}

// Unwrap exposes both the cause and ErrStorage to errors.Is.
func (e *StorageError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStorage}
	}
	return []error{ErrStorage, e.Err}
}

// ValidationError describes why a single raw row was discarded.
// It is absorbed by the sync engine and never aborts a batch.
type ValidationError struct {
	// Line is the 1-based CSV line number, zero when unknown.
	Line int

	// Field is the offending column.
	Field string

	// Reason is a short, stable, countable description.
	Reason string

	// Err optionally carries a more specific sentinel.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Reason)
	}
	return e.Field + ": " + e.Reason
}

// Unwrap exposes both the cause and ErrValidation to errors.Is.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// ConcurrencyError rejects a sync or maintenance run started while another
// run holds the run slot.
type ConcurrencyError struct {
	// Holder describes the running sync, e.g. "bootstrap" or a lock file path.
	Holder string
}

func (e *ConcurrencyError) Error() string {
	if e.Holder == "" {
		return ErrSyncInProgress.Error()
	}
	return ErrSyncInProgress.Error() + ": held by " + e.Holder
}

// Unwrap lets errors.Is match ErrSyncInProgress.
func (e *ConcurrencyError) Unwrap() error {
	return ErrSyncInProgress
}
