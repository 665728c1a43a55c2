package samgov

import (
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

const (
	// DefaultBackoff is the delay before the first retry.
	DefaultBackoff = time.Second

	// MaxBackoff caps the delay between retries.
	MaxBackoff = 30 * time.Second

	// DefaultUserAgent identifies the fetcher to the upstream service.
	DefaultUserAgent = "afrisam/1.0"
)

// Config holds fetcher configuration.
type Config struct {
	// Source holds the upstream URLs and retry settings.
	Source domain.SourceSettings

	// CacheDir receives downloaded extracts and partial downloads.
	CacheDir string

	// KeepLatest is the number of dated latest-extract copies to keep.
	KeepLatest int

	// Backoff overrides DefaultBackoff. Tests use a tiny value.
	Backoff time.Duration

	// HTTPClient overrides the default client built from Source.Timeout.
	HTTPClient *http.Client
}

// Validate checks that the configuration can drive a fetcher.
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("samgov: cache directory is required")
	}
	if c.Source.CurrentURL == "" && len(c.Source.CurrentMirrors) == 0 {
		return errors.New("samgov: no current extract URL")
	}
	if c.Source.ArchiveBaseURL == "" && len(c.Source.ArchiveMirrors) == 0 {
		return errors.New("samgov: no archive URL")
	}
	return nil
}

func (c Config) maxAttempts() int {
	if c.Source.MaxAttempts < 1 {
		return 1
	}
	return c.Source.MaxAttempts
}

func (c Config) backoff() time.Duration {
	if c.Backoff > 0 {
		return c.Backoff
	}
	return DefaultBackoff
}

func (c Config) userAgent() string {
	if c.Source.UserAgent != "" {
		return c.Source.UserAgent
	}
	return DefaultUserAgent
}
