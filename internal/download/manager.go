package download

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diegotyner/Hudl-Downloader/internal/config"
	"github.com/diegotyner/Hudl-Downloader/internal/http"
	"github.com/diegotyner/Hudl-Downloader/internal/hudl"
	ioutils "github.com/diegotyner/Hudl-Downloader/internal/io"
	"github.com/diegotyner/Hudl-Downloader/internal/merge"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
	"github.com/diegotyner/Hudl-Downloader/internal/throttle"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Time    time.Time
	Message string
	Level   ProgressLevel
}

// Progress is a snapshot of a running download.
type Progress struct {
	ReceivedBytes int64
	Done          int32 // fetched or reused
	Failed        int32
	Total         int32
}

// Report summarizes a finished run.
type Report struct {
	RunID    string
	Output   string
	Playlist string // written when segments stay on disk
	Total    int
	Fetched  int
	Skipped  int
	Missing  []int
	Bytes    int64
	Merged   bool
	Duration time.Duration
}

// Option customizes a Manager.
type Option func(*Manager)

// WithMerger replaces the ffmpeg merger.
func WithMerger(mg merge.Merger) Option {
	return func(m *Manager) { m.merger = mg }
}

// WithDownloader replaces the HTTP client.
func WithDownloader(d Downloader) Option {
	return func(m *Manager) { m.client = d }
}

// WithLogger sets the structured logger shared by every component.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithRand seeds gate jitter and retry backoff. r is shared by every worker
// behind a lock.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rand = throttle.LockedRand(r) }
}

// Manager coordinates the download of one recording: it fetches every
// segment in the configured range, checks the range is complete and merges
// the segments into one video.
type Manager struct {
	settings *config.Settings
	resolver *hudl.Resolver
	client   Downloader
	merger   merge.Merger
	rand     *rand.Rand
	log      zerolog.Logger
	runID    string

	receivedBytes int64
	doneSegments  int32
	failed        int32
	totalSegments int32

	onProgress func(ProgressEvent)
}

// NewManager creates a new download Manager. Settings are validated here,
// so a bad resolution or range fails before any network activity.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), opts ...Option) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	resolver, err := hudl.NewResolver(settings.ToResolverParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidSettings, err)
	}

	m := &Manager{
		settings:      settings,
		resolver:      resolver,
		log:           zerolog.Nop(),
		runID:         newRunID(),
		totalSegments: int32(settings.SegmentCount()),
		onProgress:    onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.log = m.log.With().Str("run_id", m.runID).Logger()
	if m.client == nil {
		m.client = http.NewClient(settings.ToHTTPOptions())
	}
	if m.merger == nil {
		mo := settings.ToMergeOptions()
		mo.Log = m.log
		m.merger = merge.NewFFmpeg(mo)
	}

	return m, nil
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RunID identifies this run in logs.
func (m *Manager) RunID() string {
	return m.runID
}

// OutputPath is where the merged video is written.
func (m *Manager) OutputPath() string {
	return m.settings.OutputPath()
}

// URLs returns the segment URLs of the configured range, in index order.
func (m *Manager) URLs() []string {
	urls := make([]string, 0, m.settings.SegmentCount())
	for i := m.settings.StartIndex; i <= m.settings.EndIndex; i++ {
		urls = append(urls, m.resolver.URL(i))
	}
	return urls
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() Progress {
	return Progress{
		ReceivedBytes: atomic.LoadInt64(&m.receivedBytes),
		Done:          atomic.LoadInt32(&m.doneSegments),
		Failed:        atomic.LoadInt32(&m.failed),
		Total:         m.totalSegments,
	}
}

// Run fetches the range and merges it.
//
// Missing segments abort the merge with a *model.IncompleteRangeError
// unless AllowGaps is set; the fetched segments stay on disk either way so
// a re-run only requests what is missing. A merge failure is returned as
// *merge.MergeError. The report is non-nil whenever fetching started.
func (m *Manager) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	s := m.settings

	if err := ioutils.EnsureDir(s.SegmentDir()); err != nil {
		return nil, fmt.Errorf("create segment dir: %w", err)
	}

	m.progress(LevelInfo, "Fetching segments %d-%d at %s with %d workers",
		s.StartIndex, s.EndIndex, hudl.Resolution(s.Resolution), s.Workers)

	set, results := m.FetchRange(ctx)

	report := &Report{
		RunID:   m.runID,
		Output:  s.OutputPath(),
		Total:   s.SegmentCount(),
		Missing: set.Missing(),
	}
	for _, r := range results {
		if !r.OK() {
			continue
		}
		report.Bytes += r.Bytes
		if r.Skipped {
			report.Skipped++
		} else {
			report.Fetched++
		}
	}
	defer func() { report.Duration = time.Since(started) }()

	if err := ctx.Err(); err != nil {
		m.progress(LevelWarning, "Interrupted, %d of %d segments on disk", set.Len(), report.Total)
		return report, err
	}

	m.progress(LevelInfo, "Fetched %d of %d segments (%s)", set.Len(), report.Total, humanize.Bytes(uint64(report.Bytes)))

	manifest, err := model.BuildManifest(set, s.StartIndex, s.EndIndex)
	var gap *model.IncompleteRangeError
	switch {
	case errors.As(err, &gap):
		if !s.AllowGaps {
			m.progress(LevelError, "Missing segments %s, merge skipped (segments kept in %s)",
				model.FormatIndices(gap.Missing), s.SegmentDir())
			m.writePlaylist(ctx, report, manifest)
			return report, err
		}
		m.progress(LevelWarning, "Merging with %d missing segment(s): %s",
			len(gap.Missing), model.FormatIndices(gap.Missing))
	case err != nil:
		return report, err
	}

	if manifest.Len() == 0 {
		m.progress(LevelError, "No files to concatenate")
		return report, merge.ErrEmptyManifest
	}

	if err := ioutils.EnsureDir(filepath.Dir(report.Output)); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}

	m.progress(LevelInfo, "Merging %d segments into %s", manifest.Len(), filepath.Base(report.Output))
	if err := m.merger.Merge(ctx, manifest, report.Output); err != nil {
		m.progress(LevelError, "Error merging segments: %v", err)
		m.writePlaylist(ctx, report, manifest)
		return report, err
	}

	report.Merged = true
	m.progress(LevelSuccess, "Successfully created %s", report.Output)
	if s.KeepSegments {
		m.writePlaylist(ctx, report, manifest)
	} else if err := os.Remove(s.SegmentDir()); err == nil {
		m.progress(LevelVerbose, "Removed %s", s.SegmentDir())
	}
	return report, nil
}

// writePlaylist leaves an .m3u8 next to segments that stay on disk.
func (m *Manager) writePlaylist(ctx context.Context, report *Report, manifest model.MergeManifest) {
	if !m.settings.WritePlaylist || manifest.Len() == 0 {
		return
	}
	path := m.settings.PlaylistPath()
	creator := merge.NewPlaylistCreator(merge.FormatHLS, hudl.SegmentDuration)
	if err := creator.WritePlaylist(ctx, path, manifest); err != nil {
		m.progress(LevelWarning, "Error creating playlist: %v", err)
		return
	}
	report.Playlist = path
	m.progress(LevelVerbose, "Created playlist %s", filepath.Base(path))
}

// FetchRange downloads every segment of the configured range into the
// recording's segment directory and returns once all of them are terminal.
func (m *Manager) FetchRange(ctx context.Context) (*model.SegmentSet, []model.FetchResult) {
	s := m.settings

	gateOpts := s.ToGateOptions()
	gateOpts.Rand = m.rand
	gate := throttle.NewGate(gateOpts)

	fetcher := NewFetcher(m.client, gate, FetcherOptions{
		Dir: s.SegmentDir(),
		Policy: RetryPolicy{
			MaxRetries:      s.MaxRetries,
			ThrottleBackoff: s.ThrottleBackoff(),
			ErrorBackoff:    s.ErrorBackoff(),
		},
		SkipExisting: s.SkipExisting,
		OnBytes:      func(n int64) { atomic.AddInt64(&m.receivedBytes, n) },
		Rand:         m.rand,
		Log:          m.log,
	})

	coord := NewCoordinator(fetcher, m.resolver.URL, s.Workers, m.onResult)
	return coord.FetchRange(ctx, s.StartIndex, s.EndIndex)
}

func (m *Manager) onResult(res model.FetchResult) {
	name := model.SegmentFileName(res.Index)
	switch {
	case res.Skipped:
		atomic.AddInt32(&m.doneSegments, 1)
		m.progress(LevelVerbose, "Skipping existing: %s", name)
	case res.OK():
		atomic.AddInt32(&m.doneSegments, 1)
		m.progress(LevelVerbose, "Downloaded: %s", name)
	default:
		atomic.AddInt32(&m.failed, 1)
		m.progress(LevelError, "Failed to download %s: %v", name, res.Err)
	}
}

func (m *Manager) progress(level ProgressLevel, format string, args ...any) {
	if m.onProgress != nil {
		m.onProgress(ProgressEvent{Time: time.Now(), Message: fmt.Sprintf(format, args...), Level: level})
	}
}
