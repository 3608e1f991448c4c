package download

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// SegmentFetcher fetches one segment to a terminal result.
type SegmentFetcher interface {
	Fetch(ctx context.Context, job model.FetchJob) model.FetchResult
}

// Coordinator runs a bounded pool of fetches over an index range.
type Coordinator struct {
	fetcher  SegmentFetcher
	url      func(index int) string
	workers  int
	onResult func(model.FetchResult)
}

// NewCoordinator creates a Coordinator. url maps an index to its segment
// URL; onResult, if set, is called from the workers as results arrive.
func NewCoordinator(fetcher SegmentFetcher, url func(index int) string, workers int, onResult func(model.FetchResult)) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{
		fetcher:  fetcher,
		url:      url,
		workers:  workers,
		onResult: onResult,
	}
}

// FetchRange fetches every index in [start, end] with at most workers
// fetches in flight.
//
// It returns only after every job has reached a terminal state. A failed
// job does not cancel the others and is left out of the returned set, which
// is frozen. The results slice holds one entry per index, in index order.
func (c *Coordinator) FetchRange(ctx context.Context, start, end int) (*model.SegmentSet, []model.FetchResult) {
	set := model.NewSegmentSet(start, end)
	if end < start {
		set.Freeze()
		return set, nil
	}

	results := make([]model.FetchResult, end-start+1)

	var g errgroup.Group
	g.SetLimit(c.workers)

	for i := start; i <= end; i++ {
		g.Go(func() error {
			res := c.fetcher.Fetch(ctx, model.FetchJob{Index: i, URL: c.url(i)})
			if res.OK() {
				if err := set.Put(res.Index, res.Path); err != nil {
					res.Err = err
				}
			}
			results[i-start] = res

			if c.onResult != nil {
				c.onResult(res)
			}
			return nil // failures never cancel sibling jobs
		})
	}

	g.Wait()
	set.Freeze()

	return set, results
}
