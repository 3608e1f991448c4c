// Package model defines the data passed between the fetch pipeline and the
// merge step.
//
// # Segments
//
// A fetch run covers a closed range of segment indices. Each index becomes a
// FetchJob, ends as a FetchResult, and on success is recorded in a
// SegmentSet:
//
//	set := model.NewSegmentSet(0, 15)
//	err := set.Put(3, filepath.Join(dir, model.SegmentFileName(3)))
//	// dir/segment_0003.ts
//
// # Manifest
//
// BuildManifest turns a finished SegmentSet into the ordered merge input and
// reports gaps as *IncompleteRangeError:
//
//	manifest, err := model.BuildManifest(set, 0, 15)
//	var gap *model.IncompleteRangeError
//	if errors.As(err, &gap) {
//	    fmt.Println("missing:", model.FormatIndices(gap.Missing))
//	}
package model
