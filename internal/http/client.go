package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Common errors. A *StatusError matches one of these with errors.Is.
var (
	ErrRateLimited = errors.New("http: rate limited")
	ErrForbidden   = errors.New("http: access forbidden")
	ErrNotFound    = errors.New("http: resource not found")
)

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Status)
}

// Is maps throttling and access codes to the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Code == http.StatusTooManyRequests
	case ErrForbidden:
		return e.Code == http.StatusForbidden
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds one request including reading the body.
	// Default: 10s
	Timeout time.Duration

	// UserAgent is sent with every request.
	// Default: "HudlDownloader"
	UserAgent string

	// Transport overrides the round tripper, mostly for tests.
	Transport http.RoundTripper
}

// DefaultOptions returns the options used for segment downloads.
func DefaultOptions() Options {
	return Options{
		Timeout:   10 * time.Second,
		UserAgent: "HudlDownloader",
	}
}

// Client wraps net/http for segment downloads.
//
// Client provides:
//   - A per-request timeout
//   - A fixed User-Agent header
//   - Streaming downloads to disk with progress tracking
//   - Typed errors for non-200 responses
//
// Client does not retry; retry policy belongs to the caller, which needs
// to tell throttling apart from other failures.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		userAgent: opts.UserAgent,
	}
}

// ProgressWriter wraps a writer to track download progress.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with the bytes of that write
	// and the running total.
	OnUpdate func(n, written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(int64(n), pw.Written, pw.Total)
	}
	return n, err
}

// DownloadFile downloads url to destPath and returns the number of bytes
// written.
//
// The body is streamed to destPath+".part" and renamed into place only when
// the copy finished, so destPath never holds a truncated segment. Any
// status other than 200 returns a *StatusError and leaves no file behind.
//
// onProgress is optional and receives (bytes in this write, written, total).
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(n, written, total int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: url}
	}

	tmpPath := destPath + ".part"
	file, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		}
	}

	n, err := io.Copy(writer, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return n, err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return n, err
	}
	return n, nil
}
