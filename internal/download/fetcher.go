package download

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/diegotyner/Hudl-Downloader/internal/http"
	ioutils "github.com/diegotyner/Hudl-Downloader/internal/io"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
	"github.com/diegotyner/Hudl-Downloader/internal/throttle"
)

// Downloader is the transport used by a Fetcher. *http.Client implements it.
type Downloader interface {
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(n, written, total int64)) (int64, error)
}

// RetryPolicy controls how one segment is retried.
type RetryPolicy struct {
	// MaxRetries is the number of network attempts per segment.
	MaxRetries int

	// ThrottleBackoff is waited after a 429 or 403.
	ThrottleBackoff throttle.Window

	// ErrorBackoff is waited after a transport error (timeout, reset...).
	ErrorBackoff throttle.Window
}

// DefaultRetryPolicy returns the policy used against the CDN.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		ThrottleBackoff: throttle.Window{Min: 5 * time.Second, Max: 10 * time.Second},
		ErrorBackoff:    throttle.Window{Min: 2 * time.Second, Max: 5 * time.Second},
	}
}

// SegmentUnavailableError is the failure reason of a segment whose attempts
// were exhausted (or cut short by cancellation).
type SegmentUnavailableError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *SegmentUnavailableError) Error() string {
	return fmt.Sprintf("segment %d unavailable after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

func (e *SegmentUnavailableError) Unwrap() error {
	return e.Err
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// Dir receives the segment files.
	Dir string

	Policy RetryPolicy

	// SkipExisting reuses a non-empty segment file from an earlier run.
	SkipExisting bool

	// OnBytes is called with every chunk of body written to disk. When an
	// attempt fails mid-body it is called once more with the negated count
	// of that attempt, so the running sum only holds committed segments.
	OnBytes func(n int64)

	// Rand and Sleep replace backoff randomness and waiting in tests. Rand
	// is drawn from under a lock.
	Rand  *rand.Rand
	Sleep func(ctx context.Context, d time.Duration) error

	Log zerolog.Logger
}

// Fetcher downloads single segments through a shared Gate.
type Fetcher struct {
	client Downloader
	gate   *throttle.Gate
	opts   FetcherOptions
}

// NewFetcher creates a Fetcher. gate is shared with every other Fetcher of
// the run.
func NewFetcher(client Downloader, gate *throttle.Gate, opts FetcherOptions) *Fetcher {
	if opts.Policy.MaxRetries <= 0 {
		opts.Policy.MaxRetries = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = throttle.Sleep
	}
	opts.Rand = throttle.LockedRand(opts.Rand)
	return &Fetcher{client: client, gate: gate, opts: opts}
}

// Fetch downloads job.URL into the segment file for job.Index.
//
// Every attempt passes the gate first. A 429 or 403 waits out the throttle
// window, a transport error the error window, and any other status retries
// immediately. Fetch never returns an error directly: failures are carried
// in the result as a *SegmentUnavailableError.
func (f *Fetcher) Fetch(ctx context.Context, job model.FetchJob) model.FetchResult {
	dest := filepath.Join(f.opts.Dir, model.SegmentFileName(job.Index))
	log := f.opts.Log.With().Int("segment", job.Index).Logger()

	if f.opts.SkipExisting {
		if n, ok := ioutils.NonEmptyFile(dest); ok {
			log.Debug().Str("file", filepath.Base(dest)).Msg("Reusing existing segment")
			return model.FetchResult{Index: job.Index, Path: dest, Bytes: n, Skipped: true}
		}
	}

	var (
		attemptBytes int64
		onProgress   func(n, written, total int64)
	)
	if f.opts.OnBytes != nil {
		onProgress = func(n, _, _ int64) {
			attemptBytes += n
			f.opts.OnBytes(n)
		}
	}

	var lastErr error
	for job.Attempts < f.opts.Policy.MaxRetries {
		if err := f.gate.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		job.Attempts++
		attemptBytes = 0
		n, err := f.client.DownloadFile(ctx, job.URL, dest, onProgress)
		if err == nil {
			log.Debug().Int("attempt", job.Attempts).Int64("bytes", n).Msg("Downloaded segment")
			return model.FetchResult{Index: job.Index, Path: dest, Bytes: n, Attempts: job.Attempts}
		}
		if attemptBytes != 0 {
			f.opts.OnBytes(-attemptBytes)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}

		wait := f.backoff(log, job, err)
		if job.Attempts >= f.opts.Policy.MaxRetries {
			break
		}
		if err := f.opts.Sleep(ctx, wait); err != nil {
			lastErr = err
			break
		}
	}

	return model.FetchResult{
		Index:    job.Index,
		Attempts: job.Attempts,
		Err:      &SegmentUnavailableError{Index: job.Index, Attempts: job.Attempts, Err: lastErr},
	}
}

// backoff logs a failed attempt and picks the wait before the next one.
func (f *Fetcher) backoff(log zerolog.Logger, job model.FetchJob, err error) time.Duration {
	evt := log.Warn().Int("attempt", job.Attempts).Int("max_retries", f.opts.Policy.MaxRetries)

	var se *http.StatusError
	switch {
	case errors.Is(err, http.ErrRateLimited):
		wait := f.opts.Policy.ThrottleBackoff.Draw(f.opts.Rand)
		evt.Dur("wait", wait).Msg("Rate limit hit, waiting longer before retry")
		return wait
	case errors.Is(err, http.ErrForbidden):
		wait := f.opts.Policy.ThrottleBackoff.Draw(f.opts.Rand)
		evt.Dur("wait", wait).Msg("Forbidden from resource, waiting longer before retry")
		return wait
	case errors.As(err, &se):
		evt.Int("status", se.Code).Msg("Failed to download segment")
		return 0
	default:
		wait := f.opts.Policy.ErrorBackoff.Draw(f.opts.Rand)
		evt.Err(err).Dur("wait", wait).Msg("Error downloading segment")
		return wait
	}
}
