// Package download provides the download orchestration logic for
// fetching the segments of a Hudl recording and merging them.
//
// # Manager
//
// The Manager coordinates the entire download process:
//
//  1. Validate settings (no request is made for a bad resolution or range)
//  2. Fetch every segment in the range through a bounded worker pool
//  3. Check the range is complete
//  4. Merge the segments with ffmpeg and remove them
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := manager.Run(ctx)
//
// # Concurrency
//
// Segments are fetched by settings.Workers goroutines (errgroup). Every
// network attempt first passes a process-wide throttle.Gate, so requests
// leave at least settings.MinDelay apart no matter how many workers run.
//
// # Retry Logic
//
// A segment gets settings.MaxRetries attempts. 429 and 403 responses wait
// out the throttle backoff window, transport errors the shorter error
// window, and other statuses are retried right away. A segment that runs out
// of attempts is reported with a *SegmentUnavailableError and left out of
// the merge.
package download
