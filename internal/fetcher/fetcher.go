// Package fetcher retrieves bulletin documents from HTTP sources or the
// local filesystem.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"fjacquet/aqi-bulletin/internal/logging"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBytes caps the accepted document size.
	DefaultMaxBytes = 32 << 20
	// DefaultUserAgent identifies the pipeline to the publisher.
	DefaultUserAgent = "aqi-bulletin/1.0"
)

// ErrTimeout is returned when the configured fetch timeout expires before
// the document has been received.
var ErrTimeout = errors.New("fetch timed out")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// Fetcher returns the raw bytes stored at location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// HTTPFetcher fetches documents over HTTP(S) with a per-request timeout.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	logger    logging.Logger
}

// NewHTTPFetcher creates an HTTPFetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string, logger logging.Logger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &HTTPFetcher{
		Client:    &http.Client{},
		UserAgent: userAgent,
		Timeout:   timeout,
		MaxBytes:  DefaultMaxBytes,
		logger:    logger,
	}
}

// Fetch issues a GET for location and returns the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	reqCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", location)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	f.logger.Debug("Fetching bulletin", logging.F(logging.FieldURL, location))

	resp, err := client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, reqCtx, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.WithError(cerr).Warn("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: location, Code: resp.StatusCode}
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, f.classify(ctx, reqCtx, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("document exceeds %d bytes", limit)
	}

	f.logger.Debug("Fetched bulletin",
		logging.F(logging.FieldURL, location),
		logging.F(logging.FieldBytes, len(body)),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return body, nil
}

// classify maps an expired request deadline to ErrTimeout. Cancellation of
// the caller's own context is passed through untouched.
func (f *HTTPFetcher) classify(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("fetch aborted: %w", parent.Err())
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, f.Timeout, err)
	}
	return err
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

// FileFetcher reads documents from the local filesystem.
type FileFetcher struct{}

// Fetch reads the file at location. The context is only checked up front.
func (FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(location, "file://")
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied input path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Source dispatches http(s) locations to an HTTPFetcher and everything
// else to the filesystem.
type Source struct {
	HTTP  Fetcher
	Files Fetcher
}

// NewSource builds a Source around httpFetcher.
func NewSource(httpFetcher Fetcher) *Source {
	return &Source{HTTP: httpFetcher, Files: FileFetcher{}}
}

// Fetch implements Fetcher.
func (s *Source) Fetch(ctx context.Context, location string) ([]byte, error) {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return s.HTTP.Fetch(ctx, location)
	}
	return s.Files.Fetch(ctx, location)
}
