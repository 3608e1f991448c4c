// Package hudl knows how Hudl recordings are laid out on their CDN.
//
// A recording is a run of numbered MPEG-TS segments. The URL of every
// segment is fully determined by two game codes, a resolution and the
// segment index:
//
//	{cdn}/{stream id}/{stream path}/media-{media id}_{bitrate}_d10000_{index}.ts
//
// # Resolving URLs
//
//	r, err := hudl.NewResolver(hudl.Params{
//	    StreamID:   "sn-zpcczwe0",
//	    MediaID:    "b933ecda",
//	    Resolution: hudl.Res720,
//	})
//	if err != nil {
//	    // hudl.ErrUnsupportedResolution
//	}
//	fmt.Println(r.URL(12))
//
// # Parsing a pasted URL
//
// ParseSegmentURL goes the other way and recovers Params from one segment URL.
package hudl
