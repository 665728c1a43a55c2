package samgov

import (
	"context"
	"crypto/md5" //nolint:gosec // matches the digest S3 publishes as ETag
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// md5ETag matches a single-part S3 ETag, which is the object's MD5.
var md5ETag = regexp.MustCompile(`^"?([0-9a-fA-F]{32})"?$`)

// Client downloads files over HTTP with retries, throttling and resume.
type Client struct {
	http        *http.Client
	limiter     *RateLimiter
	maxAttempts int
	backoff     time.Duration
	userAgent   string
}

// NewClient creates a download client from the configuration.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Source.Timeout}
	}
	return &Client{
		http:        hc,
		limiter:     NewRateLimiter(cfg.Source.RequestsPerSecond),
		maxAttempts: cfg.maxAttempts(),
		backoff:     cfg.backoff(),
		userAgent:   cfg.userAgent(),
	}
}

// download describes one file to retrieve.
type download struct {
	// op labels errors and log lines, e.g. "archive FY2019".
	op string

	// urls are tried in order until one succeeds.
	urls []string

	// dest is the final path. The transfer writes to dest + ".part".
	dest string

	// resume continues an existing partial file with a Range request.
	resume bool

	// since sets If-Modified-Since when non-zero.
	since time.Time
}

// result describes a finished download.
type result struct {
	url          string
	size         int64
	lastModified time.Time
	notModified  bool
}

// Download fetches d from the first URL that serves it.
// When every URL reports 404 the error wraps domain.ErrNotFound.
func (c *Client) Download(ctx context.Context, d download) (*result, error) {
	var notFound, other error
	for _, u := range d.urls {
		res, err := c.downloadFrom(ctx, d, u)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		logger.Warn("%s: %s: %v", d.op, u, err)
		if errors.Is(err, domain.ErrNotFound) {
			notFound = err
		} else if other == nil {
			other = err
		}
	}

	if other != nil {
		return nil, other
	}
	if notFound != nil {
		return nil, notFound
	}
	return nil, &domain.FetchError{Op: d.op, Err: errors.New("no source URL configured")}
}

// downloadFrom retries a single URL until it succeeds or fails permanently.
func (c *Client) downloadFrom(ctx context.Context, d download, url string) (*result, error) {
	part := d.dest + ".part"
	if !d.resume {
		if err := os.Remove(part); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, &domain.FetchError{Op: d.op, URL: url, Err: err}
		}
	}

	var lastErr *domain.FetchError
	var wait time.Duration
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := max(wait, c.delay(attempt-1))
			logger.Debug("%s: retry %d/%d in %s", d.op, attempt, c.maxAttempts, delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, &domain.FetchError{Op: d.op, URL: url, Attempts: attempt - 1, Err: err}
			}
		}

		res, retryAfter, ferr := c.attempt(ctx, d, url, part)
		if ferr == nil {
			if res.notModified || res.size == 0 {
				_ = os.Remove(part)
				return res, nil
			}
			if err := os.Rename(part, d.dest); err != nil {
				return nil, &domain.FetchError{Op: d.op, URL: url, Attempts: attempt, Err: err}
			}
			return res, nil
		}

		ferr.Attempts = attempt
		if ctx.Err() != nil || !ferr.Retryable() {
			return nil, ferr
		}
		lastErr = ferr
		wait = retryAfter
	}
	return nil, lastErr
}

// delay returns exponential backoff with up to 50% jitter.
func (c *Client) delay(retry int) time.Duration {
	d := c.backoff << (retry - 1)
	if d <= 0 || d > MaxBackoff {
		d = MaxBackoff
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1)) //nolint:gosec // jitter only
}

// attempt performs one request and streams the body into part.
func (c *Client) attempt(ctx context.Context, d download, url, part string) (*result, time.Duration, *domain.FetchError) {
	fail := func(status int, err error) *domain.FetchError {
		return &domain.FetchError{Op: d.op, URL: url, StatusCode: status, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fail(0, err)
	}

	offset := int64(0)
	if d.resume {
		if info, err := os.Stat(part); err == nil {
			offset = info.Size()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, fail(0, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	if !d.since.IsZero() {
		req.Header.Set("If-Modified-Since", d.since.UTC().Format(http.TimeFormat))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fail(0, err)
	}
	defer resp.Body.Close()

	retryAfter := c.limiter.Observe(resp)

	res := &result{url: url}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		res.lastModified = lm
	}

	switch resp.StatusCode {
	case http.StatusNotModified:
		res.notModified = true
		return res, 0, nil
	case http.StatusNotFound:
		return nil, 0, fail(resp.StatusCode, domain.ErrNotFound)
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file no longer lines up with the remote object.
		_ = os.Remove(part)
		return nil, 0, fail(0, fmt.Errorf("%w: partial download discarded", domain.ErrTruncated))
	case http.StatusOK, http.StatusPartialContent:
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, retryAfter, fail(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		return nil, 0, fail(resp.StatusCode, fmt.Errorf("%w: server returned an HTML page", domain.ErrMalformedExtract))
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	expected := resp.ContentLength
	if resp.StatusCode == http.StatusPartialContent {
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			_ = os.Remove(part)
			return nil, 0, fail(0, fmt.Errorf("%w: unexpected content range %q", domain.ErrTruncated, resp.Header.Get("Content-Range")))
		}
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		expected = total
		logger.Debug("%s: resuming at byte %d", d.op, offset)
	} else {
		offset = 0
	}

	f, err := os.OpenFile(part, flags, 0o600)
	if err != nil {
		return nil, 0, fail(0, err)
	}
	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		// Keep the partial file so the next attempt resumes.
		return nil, 0, fail(0, fmt.Errorf("%w: %w", domain.ErrTruncated, copyErr))
	}
	if closeErr != nil {
		return nil, 0, fail(0, closeErr)
	}

	res.size = offset + n
	if expected >= 0 && res.size != expected {
		return nil, 0, fail(resp.StatusCode, fmt.Errorf("%w: got %d of %d bytes", domain.ErrTruncated, res.size, expected))
	}

	if m := md5ETag.FindStringSubmatch(resp.Header.Get("ETag")); m != nil && res.size > 0 {
		sum, err := fileMD5(part)
		if err != nil {
			return nil, 0, fail(0, err)
		}
		if !strings.EqualFold(sum, m[1]) {
			_ = os.Remove(part)
			return nil, 0, fail(resp.StatusCode, fmt.Errorf("%w: md5 %s, etag %s", domain.ErrChecksumMismatch, sum, m[1]))
		}
	}

	return res, 0, nil
}

// parseContentRange parses "bytes start-end/total".
func parseContentRange(v string) (start, total int64, ok bool) {
	v, found := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !found {
		return 0, 0, false
	}
	span, size, found := strings.Cut(v, "/")
	if !found {
		return 0, 0, false
	}
	first, _, found := strings.Cut(span, "-")
	if !found {
		return 0, 0, false
	}

	var err error
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, false
	}
	if size == "*" {
		return start, -1, true
	}
	if total, err = strconv.ParseInt(size, 10, 64); err != nil {
		return 0, 0, false
	}
	return start, total, true
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // see import
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
