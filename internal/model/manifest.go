package model

import (
	"fmt"
	"strings"
)

// ManifestEntry is one input of the merge, in order.
type ManifestEntry struct {
	Index int
	Path  string
}

// MergeManifest is the ordered list of segment files handed to the merger.
// Entries are strictly ascending by Index.
type MergeManifest struct {
	Entries []ManifestEntry
}

// Len returns the number of entries.
func (m MergeManifest) Len() int {
	return len(m.Entries)
}

// Paths returns the entry paths in merge order.
func (m MergeManifest) Paths() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Path
	}
	return out
}

// IncompleteRangeError reports indices of the requested range that have no
// downloaded segment.
type IncompleteRangeError struct {
	Start, End int
	Missing    []int
}

func (e *IncompleteRangeError) Error() string {
	return fmt.Sprintf("incomplete range [%d, %d]: %d missing segment(s): %s",
		e.Start, e.End, len(e.Missing), FormatIndices(e.Missing))
}

// BuildManifest projects set onto [start, end] in ascending index order.
//
// The returned manifest always holds every recorded segment of the range.
// If any index is missing the error is an *IncompleteRangeError; callers
// decide whether a manifest with gaps may still be merged.
func BuildManifest(set *SegmentSet, start, end int) (MergeManifest, error) {
	if start > end {
		return MergeManifest{}, fmt.Errorf("invalid range [%d, %d]", start, end)
	}

	var (
		m       MergeManifest
		missing []int
	)
	for i := start; i <= end; i++ {
		p, ok := set.Get(i)
		if !ok {
			missing = append(missing, i)
			continue
		}
		m.Entries = append(m.Entries, ManifestEntry{Index: i, Path: p})
	}

	if len(missing) > 0 {
		return m, &IncompleteRangeError{Start: start, End: end, Missing: missing}
	}
	return m, nil
}

// FormatIndices renders ascending indices compactly, collapsing runs:
// [1 2 3 7 9 10] becomes "1-3, 7, 9-10".
func FormatIndices(indices []int) string {
	var parts []string
	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, fmt.Sprint(indices[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", indices[i], indices[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}
