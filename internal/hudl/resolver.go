package hudl

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultCDNBase is the CloudFront distribution that serves Hudl recordings.
const DefaultCDNBase = "https://di2g5yar1p6ph.cloudfront.net"

// segmentDurationToken is the fixed segment duration part of every media path.
const segmentDurationToken = "d10000"

// SegmentDuration is the play time of one segment.
const SegmentDuration = 10 * time.Second

// ErrUnsupportedResolution is returned for a resolution outside the known set.
var ErrUnsupportedResolution = errors.New("hudl: unsupported resolution")

// Resolution is the vertical size of a rendition (270, 540, 720, 1080).
type Resolution int

// Supported resolutions.
const (
	Res270  Resolution = 270
	Res540  Resolution = 540
	Res720  Resolution = 720
	Res1080 Resolution = 1080
)

func (r Resolution) String() string {
	return fmt.Sprintf("%dp", int(r))
}

// Rendition holds the two path tokens that select one resolution on the CDN.
type Rendition struct {
	// StreamPath is the HLS directory, e.g. "540p-lo.hls".
	StreamPath string

	// Bitrate is the bitrate token inside the segment name, e.g. "b1680800".
	Bitrate string
}

var renditions = map[Resolution]Rendition{
	Res270:  {StreamPath: "270p.hls", Bitrate: "b360800"},
	Res540:  {StreamPath: "540p-lo.hls", Bitrate: "b1680800"},
	Res720:  {StreamPath: "720p-2.5.hls", Bitrate: "b2890800"},
	Res1080: {StreamPath: "1080p30-6.0.hls", Bitrate: "b6740800"},
}

// LookupRendition returns the path tokens for res.
func LookupRendition(res Resolution) (Rendition, error) {
	r, ok := renditions[res]
	if !ok {
		return Rendition{}, fmt.Errorf("%w: %d (must be one of %s)", ErrUnsupportedResolution, int(res), supportedList())
	}
	return r, nil
}

// Resolutions returns the supported resolutions in ascending order.
func Resolutions() []Resolution {
	out := make([]Resolution, 0, len(renditions))
	for r := range renditions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func supportedList() string {
	var parts []string
	for _, r := range Resolutions() {
		parts = append(parts, fmt.Sprint(int(r)))
	}
	return strings.Join(parts, ", ")
}

// Params are the template parameters of one recording.
type Params struct {
	// CDNBase is the distribution root without a trailing slash.
	CDNBase string

	// StreamID is the first game code, e.g. "sn-zpcczwe0".
	StreamID string

	// MediaID is the second game code, e.g. "b933ecda".
	MediaID string

	// Resolution selects the rendition.
	Resolution Resolution
}

// Resolver maps segment indices to URLs for one recording.
//
// A Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	prefix string
	suffix string
}

// NewResolver validates p and precomputes the URL template.
//
// Only the resolution is checked against a fixed set; the IDs are used
// verbatim.
func NewResolver(p Params) (*Resolver, error) {
	rend, err := LookupRendition(p.Resolution)
	if err != nil {
		return nil, err
	}
	if p.StreamID == "" || p.MediaID == "" {
		return nil, errors.New("hudl: stream id and media id are required")
	}

	base := strings.TrimRight(p.CDNBase, "/")
	if base == "" {
		base = DefaultCDNBase
	}

	return &Resolver{
		prefix: fmt.Sprintf("%s/%s/%s/media-%s_%s_%s_", base, p.StreamID, rend.StreamPath, p.MediaID, rend.Bitrate, segmentDurationToken),
		suffix: ".ts",
	}, nil
}

// URL returns the segment URL for index. Distinct indices yield URLs that
// differ only in the index token.
func (r *Resolver) URL(index int) string {
	return fmt.Sprintf("%s%d%s", r.prefix, index, r.suffix)
}

// Resolve is the one-shot form of NewResolver(p).URL(index).
func Resolve(p Params, index int) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("hudl: negative segment index %d", index)
	}
	r, err := NewResolver(p)
	if err != nil {
		return "", err
	}
	return r.URL(index), nil
}
