package hudl

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var segmentNameRe = regexp.MustCompile(`^media-([A-Za-z0-9]+)_(b[0-9]+)_d[0-9]+_([0-9]+)\.ts$`)

// ParseSegmentURL extracts recording parameters from a single segment URL,
// as copied from the browser's network tab:
//
//	https://di2g5yar1p6ph.cloudfront.net/sn-zpcczwe0/1080p60-6.0.hls/media-b933ecda_b6740800_d10000_9.ts
//
// The resolution is recovered from the bitrate token. When the token is not
// one of the known renditions, Params.Resolution is left zero and the caller
// has to choose one. The returned index is the index of the pasted segment.
func ParseSegmentURL(raw string) (Params, int, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Params{}, 0, fmt.Errorf("hudl: parse segment url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Params{}, 0, fmt.Errorf("hudl: segment url %q is not absolute", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 {
		return Params{}, 0, fmt.Errorf("hudl: segment url %q has too few path elements", raw)
	}

	name := parts[len(parts)-1]
	m := segmentNameRe.FindStringSubmatch(name)
	if m == nil {
		return Params{}, 0, fmt.Errorf("hudl: %q is not a media segment name", name)
	}

	index, err := strconv.Atoi(m[3])
	if err != nil {
		return Params{}, 0, fmt.Errorf("hudl: segment index: %w", err)
	}

	// Everything before the stream id belongs to the CDN base.
	streamID := parts[len(parts)-3]
	base := u.Scheme + "://" + u.Host
	if prefix := parts[:len(parts)-3]; len(prefix) > 0 {
		base += "/" + strings.Join(prefix, "/")
	}

	p := Params{
		CDNBase:  base,
		StreamID: streamID,
		MediaID:  m[1],
	}
	for res, rend := range renditions {
		if rend.Bitrate == m[2] {
			p.Resolution = res
			break
		}
	}

	return p, index, nil
}
