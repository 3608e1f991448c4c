// Package http provides the HTTP client used to fetch media segments.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Per-request timeouts
//   - Streaming downloads to disk with progress tracking
//   - Typed status errors (429 and 403 are distinguishable with errors.Is)
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	n, err := client.DownloadFile(ctx, segmentURL, "/tmp/segment_0001.ts", nil)
//	switch {
//	case errors.Is(err, http.ErrRateLimited):
//	    // back off
//	case err != nil:
//	    var se *http.StatusError
//	    if errors.As(err, &se) {
//	        fmt.Println("status", se.Code)
//	    }
//	}
package http
