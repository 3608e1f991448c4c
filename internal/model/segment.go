package model

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// SegmentFileName returns the local file name for a segment index.
//
// Names are zero-padded to four digits so that a lexical sort of a
// downloads directory matches index order for recordings up to 10000
// segments.
func SegmentFileName(index int) string {
	return fmt.Sprintf("segment_%04d.ts", index)
}

// FetchJob is one unit of work for a fetch worker.
type FetchJob struct {
	// Index is the segment index within the recording.
	Index int

	// URL is the resolved segment URL.
	URL string

	// Attempts counts network attempts made so far.
	Attempts int
}

// FetchResult is the terminal outcome of one FetchJob.
//
// A result with a nil Err is a success and Path names the downloaded file.
// Otherwise Err holds the last reason the segment could not be fetched.
type FetchResult struct {
	Index    int
	Path     string
	Bytes    int64
	Attempts int

	// Skipped is set when an existing file was reused without a request.
	Skipped bool

	Err error
}

// OK reports whether the result is a success.
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// SegmentSet maps segment indices to the local files fetched in one run.
//
// Keys are restricted to the closed range the set was created for, and each
// index can be written once. The set is safe for concurrent Put calls;
// after Freeze it is read-only.
type SegmentSet struct {
	start, end int

	mu     sync.RWMutex
	paths  map[int]string
	frozen bool
}

// NewSegmentSet creates an empty set for indices in [start, end].
func NewSegmentSet(start, end int) *SegmentSet {
	return &SegmentSet{
		start: start,
		end:   end,
		paths: make(map[int]string),
	}
}

// Range returns the closed index range of the set.
func (s *SegmentSet) Range() (start, end int) {
	return s.start, s.end
}

// Put records the file for index.
func (s *SegmentSet) Put(index int, path string) error {
	if index < s.start || index > s.end {
		return fmt.Errorf("segment %d outside range [%d, %d]", index, s.start, s.end)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("segment %d: set is frozen", index)
	}
	if prev, ok := s.paths[index]; ok {
		return fmt.Errorf("segment %d already recorded as %s", index, filepath.Base(prev))
	}
	s.paths[index] = path
	return nil
}

// Get returns the file recorded for index.
func (s *SegmentSet) Get(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.paths[index]
	return p, ok
}

// Len returns the number of recorded segments.
func (s *SegmentSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Freeze rejects further writes.
func (s *SegmentSet) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Indices returns the recorded indices in ascending order.
func (s *SegmentSet) Indices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int, 0, len(s.paths))
	for i := range s.paths {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Missing returns the indices of [start, end] that have no file.
func (s *SegmentSet) Missing() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int
	for i := s.start; i <= s.end; i++ {
		if _, ok := s.paths[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
