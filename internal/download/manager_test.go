package download

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/diegotyner/Hudl-Downloader/internal/config"
	"github.com/diegotyner/Hudl-Downloader/internal/merge"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// fakeCDN serves segments for any index and counts requests per index.
type fakeCDN struct {
	mu       sync.Mutex
	requests map[int]int
	status   map[int]int // index -> forced status
}

func newFakeCDN(status map[int]int) (*fakeCDN, *httptest.Server) {
	cdn := &fakeCDN{requests: map[int]int{}, status: status}
	return cdn, httptest.NewServer(cdn)
}

func (c *fakeCDN) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "_")+1:]
	index, err := strconv.Atoi(strings.TrimSuffix(name, ".ts"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	c.mu.Lock()
	c.requests[index]++
	code := c.status[index]
	c.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		return
	}
	fmt.Fprintf(w, "segment-%d", index)
}

func (c *fakeCDN) count(index int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[index]
}

func (c *fakeCDN) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.requests {
		n += v
	}
	return n
}

// fakeMerger records the manifest instead of running ffmpeg.
type fakeMerger struct {
	calls    int
	manifest model.MergeManifest
	output   string
	err      error
}

func (m *fakeMerger) Merge(ctx context.Context, manifest model.MergeManifest, output string) error {
	m.calls++
	m.manifest = manifest
	m.output = output
	return m.err
}

func testSettings(t *testing.T, cdnURL string) *config.Settings {
	t.Helper()
	s := config.DefaultSettings()
	s.CDNBase = cdnURL
	s.StreamID = "sn-test"
	s.MediaID = "abc123"
	s.Resolution = 270
	s.StartIndex = 0
	s.EndIndex = 3
	s.DownloadsPath = t.TempDir()
	s.OutputName = "Game"
	s.MinDelay = 0
	s.MaxDelay = 0
	s.ThrottleBackoffMin = 0
	s.ThrottleBackoffMax = 0
	s.ErrorBackoffMin = 0
	s.ErrorBackoffMax = 0
	return s
}

func newTestManager(t *testing.T, s *config.Settings, mg merge.Merger) (*Manager, *[]ProgressEvent) {
	t.Helper()
	var mu sync.Mutex
	events := &[]ProgressEvent{}
	m, err := NewManager(s, func(e ProgressEvent) {
		mu.Lock()
		*events = append(*events, e)
		mu.Unlock()
	}, WithMerger(mg), WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, events
}

func TestManager_AllSegmentsMerged(t *testing.T) {
	cdn, srv := newFakeCDN(nil)
	defer srv.Close()

	s := testSettings(t, srv.URL)
	mg := &fakeMerger{}
	m, _ := newTestManager(t, s, mg)

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i := 0; i <= 3; i++ {
		if cdn.count(i) != 1 {
			t.Errorf("index %d requested %d times, want 1", i, cdn.count(i))
		}
	}
	if mg.calls != 1 {
		t.Fatalf("merger called %d times, want 1", mg.calls)
	}
	if mg.manifest.Len() != 4 {
		t.Fatalf("manifest has %d entries, want 4", mg.manifest.Len())
	}
	for i, e := range mg.manifest.Entries {
		if e.Index != i || filepath.Base(e.Path) != model.SegmentFileName(i) {
			t.Errorf("entry %d = %+v", i, e)
		}
		data, _ := os.ReadFile(e.Path)
		if string(data) != fmt.Sprintf("segment-%d", i) {
			t.Errorf("segment %d content = %q", i, data)
		}
	}
	if want := filepath.Join(s.DownloadsPath, "Game_270.mp4"); mg.output != want {
		t.Errorf("output = %q, want %q", mg.output, want)
	}

	if !report.Merged || report.Fetched != 4 || len(report.Missing) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Playlist != "" {
		t.Errorf("no playlist expected once segments are merged, got %q", report.Playlist)
	}
	if p := m.GetProgress(); p.Done != 4 || p.Total != 4 || p.Failed != 0 || p.ReceivedBytes == 0 {
		t.Errorf("unexpected progress: %+v", p)
	}
}

func TestManager_ThrottledSegmentAbortsMerge(t *testing.T) {
	cdn, srv := newFakeCDN(map[int]int{2: http.StatusTooManyRequests})
	defer srv.Close()

	s := testSettings(t, srv.URL)
	s.MaxRetries = 3
	mg := &fakeMerger{}
	m, events := newTestManager(t, s, mg)

	report, err := m.Run(context.Background())

	var gap *model.IncompleteRangeError
	if !errors.As(err, &gap) {
		t.Fatalf("expected IncompleteRangeError, got %v", err)
	}
	if len(gap.Missing) != 1 || gap.Missing[0] != 2 {
		t.Errorf("Missing = %v, want [2]", gap.Missing)
	}
	if cdn.count(2) != 3 {
		t.Errorf("index 2 requested %d times, want exactly 3", cdn.count(2))
	}
	if mg.calls != 0 {
		t.Error("merger must not run with a gap")
	}
	if report == nil || report.Merged || report.Fetched != 3 {
		t.Errorf("unexpected report: %+v", report)
	}

	if report.Playlist != s.PlaylistPath() {
		t.Errorf("Playlist = %q, want %q", report.Playlist, s.PlaylistPath())
	}
	if data, err := os.ReadFile(report.Playlist); err != nil || !strings.Contains(string(data), "#EXT-X-DISCONTINUITY") {
		t.Errorf("playlist should mark the gap: %q, %v", data, err)
	}

	// Fetched segments stay for a resumed run.
	for _, i := range []int{0, 1, 3} {
		if _, err := os.Stat(filepath.Join(s.SegmentDir(), model.SegmentFileName(i))); err != nil {
			t.Errorf("segment %d should remain: %v", i, err)
		}
	}

	var sawFailure bool
	for _, e := range *events {
		if e.Level == LevelError && strings.Contains(e.Message, "segment_0002.ts") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("expected an error event naming segment_0002.ts")
	}
}

func TestManager_AllowGapsMergesRemaining(t *testing.T) {
	_, srv := newFakeCDN(map[int]int{2: http.StatusForbidden})
	defer srv.Close()

	s := testSettings(t, srv.URL)
	s.AllowGaps = true
	mg := &fakeMerger{}
	m, _ := newTestManager(t, s, mg)

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mg.manifest.Len() != 3 {
		t.Fatalf("manifest has %d entries, want 3", mg.manifest.Len())
	}
	for i, want := range []int{0, 1, 3} {
		if mg.manifest.Entries[i].Index != want {
			t.Errorf("entry %d index = %d, want %d", i, mg.manifest.Entries[i].Index, want)
		}
	}
	if !report.Merged || len(report.Missing) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestManager_InvalidResolutionMakesNoRequests(t *testing.T) {
	cdn, srv := newFakeCDN(nil)
	defer srv.Close()

	s := testSettings(t, srv.URL)
	s.Resolution = 360

	_, err := NewManager(s, nil)
	if !errors.Is(err, config.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
	if cdn.total() != 0 {
		t.Errorf("made %d requests, want 0", cdn.total())
	}
}

func TestManager_ResumeSkipsExisting(t *testing.T) {
	cdn, srv := newFakeCDN(nil)
	defer srv.Close()

	s := testSettings(t, srv.URL)
	os.MkdirAll(s.SegmentDir(), 0755)
	os.WriteFile(filepath.Join(s.SegmentDir(), model.SegmentFileName(1)), []byte("old"), 0644)

	mg := &fakeMerger{}
	m, _ := newTestManager(t, s, mg)

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cdn.count(1) != 0 {
		t.Errorf("segment 1 requested %d times, want 0", cdn.count(1))
	}
	if report.Skipped != 1 || report.Fetched != 3 {
		t.Errorf("unexpected report: %+v", report)
	}
	if mg.manifest.Len() != 4 {
		t.Errorf("manifest has %d entries, want 4", mg.manifest.Len())
	}
}

func TestManager_RecordingsDoNotShareSegments(t *testing.T) {
	cdn, srv := newFakeCDN(map[int]int{1: http.StatusInternalServerError})
	defer srv.Close()

	first := testSettings(t, srv.URL)
	first.MaxRetries = 1
	m1, _ := newTestManager(t, first, &fakeMerger{})
	if _, err := m1.Run(context.Background()); err == nil {
		t.Fatal("first recording should stop on its gap")
	}

	// A different recording in the same downloads directory.
	cdn.mu.Lock()
	cdn.status = nil
	cdn.requests = map[int]int{}
	cdn.mu.Unlock()

	second := testSettings(t, srv.URL)
	second.DownloadsPath = first.DownloadsPath
	second.StreamID = "sn-other"
	second.MediaID = "zzz999"
	mg := &fakeMerger{}
	m2, _ := newTestManager(t, second, mg)

	report, err := m2.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.SegmentDir() == second.SegmentDir() {
		t.Fatalf("recordings share segment dir %q", first.SegmentDir())
	}
	if report.Skipped != 0 || cdn.total() != 4 {
		t.Errorf("second recording reused %d segments, made %d requests", report.Skipped, cdn.total())
	}
	for _, e := range mg.manifest.Entries {
		if filepath.Dir(e.Path) != second.SegmentDir() {
			t.Errorf("entry %d from %s, want %s", e.Index, filepath.Dir(e.Path), second.SegmentDir())
		}
	}

	// Same recording at another resolution.
	third := testSettings(t, srv.URL)
	third.DownloadsPath = first.DownloadsPath
	third.Resolution = 540
	if third.SegmentDir() == first.SegmentDir() {
		t.Errorf("resolutions share segment dir %q", first.SegmentDir())
	}
}

func TestManager_SharedRandUnderLoad(t *testing.T) {
	status := map[int]int{}
	for i := 0; i < 6; i++ {
		status[i] = http.StatusTooManyRequests
	}
	cdn, srv := newFakeCDN(status)
	defer srv.Close()

	s := testSettings(t, srv.URL)
	s.EndIndex = 5
	s.Workers = 6
	s.MaxRetries = 3
	s.MaxDelay = 0.001
	s.ThrottleBackoffMax = 0.001
	s.ErrorBackoffMax = 0.001
	m, _ := newTestManager(t, s, &fakeMerger{})

	_, err := m.Run(context.Background())
	var gap *model.IncompleteRangeError
	if !errors.As(err, &gap) || len(gap.Missing) != 6 {
		t.Fatalf("expected all 6 segments missing, got %v", err)
	}
	if cdn.total() != 18 {
		t.Errorf("made %d requests, want 18", cdn.total())
	}
}

func TestManager_MergeFailure(t *testing.T) {
	_, srv := newFakeCDN(nil)
	defer srv.Close()

	s := testSettings(t, srv.URL)
	mg := &fakeMerger{err: &merge.MergeError{Output: "x", Err: errors.New("exit status 1")}}
	m, _ := newTestManager(t, s, mg)

	report, err := m.Run(context.Background())
	var me *merge.MergeError
	if !errors.As(err, &me) {
		t.Fatalf("expected MergeError, got %v", err)
	}
	if report.Merged {
		t.Error("report should not be marked merged")
	}
}

func TestManager_Cancelled(t *testing.T) {
	_, srv := newFakeCDN(nil)
	defer srv.Close()

	s := testSettings(t, srv.URL)
	mg := &fakeMerger{}
	m, _ := newTestManager(t, s, mg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mg.calls != 0 {
		t.Error("merger must not run after cancellation")
	}
}

func TestManager_URLs(t *testing.T) {
	s := testSettings(t, "https://cdn.test")
	s.StartIndex = 5
	s.EndIndex = 6
	m, _ := newTestManager(t, s, &fakeMerger{})

	urls := m.URLs()
	want := []string{
		"https://cdn.test/sn-test/270p.hls/media-abc123_b360800_d10000_5.ts",
		"https://cdn.test/sn-test/270p.hls/media-abc123_b360800_d10000_6.ts",
	}
	if len(urls) != len(want) {
		t.Fatalf("URLs() = %v", urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("URLs()[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
	if m.RunID() == "" {
		t.Error("RunID() should not be empty")
	}
}
