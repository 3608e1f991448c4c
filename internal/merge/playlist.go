package merge

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	ioutils "github.com/diegotyner/Hudl-Downloader/internal/io"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// PlaylistFormat represents supported playlist file formats.
//
// Each format has different features and compatibility:
//   - HLS: .m3u8 VOD media playlist, plays in ffplay, mpv and VLC
//   - M3U: extended .m3u, one entry per segment
type PlaylistFormat int

const (
	// FormatHLS creates .m3u8 media playlists. Gaps in the index sequence
	// are marked with #EXT-X-DISCONTINUITY.
	FormatHLS PlaylistFormat = iota

	// FormatM3U creates extended .m3u files.
	FormatM3U
)

// Extension returns the file extension of the format.
func (f PlaylistFormat) Extension() string {
	if f == FormatM3U {
		return ".m3u"
	}
	return ".m3u8"
}

// PlaylistCreator generates a playlist over segment files, so a run whose
// segments stay on disk can still be watched without merging.
//
// Example:
//
//	creator := NewPlaylistCreator(FormatHLS, 10*time.Second)
//	content := creator.CreatePlaylist(manifest, dir)
//
//	// Result:
//	// #EXTM3U
//	// #EXT-X-VERSION:3
//	// #EXT-X-TARGETDURATION:10
//	// ...
//	// #EXTINF:10.000,
//	// segment_0000.ts
type PlaylistCreator struct {
	format   PlaylistFormat
	duration time.Duration // per segment
}

// NewPlaylistCreator creates a new PlaylistCreator.
func NewPlaylistCreator(format PlaylistFormat, segmentDuration time.Duration) *PlaylistCreator {
	return &PlaylistCreator{
		format:   format,
		duration: segmentDuration,
	}
}

// CreatePlaylist generates playlist content for manifest. Segment paths in
// listDir are written by base name.
func (p *PlaylistCreator) CreatePlaylist(manifest model.MergeManifest, listDir string) string {
	dir := absDir(listDir)
	switch p.format {
	case FormatM3U:
		return p.createM3U(manifest, dir)
	default:
		return p.createHLS(manifest, dir)
	}
}

// createHLS generates an HLS VOD media playlist:
//
//	#EXTM3U
//	#EXT-X-VERSION:3
//	#EXT-X-TARGETDURATION:10
//	#EXT-X-MEDIA-SEQUENCE:0
//	#EXT-X-PLAYLIST-TYPE:VOD
//	#EXTINF:10.000,
//	segment_0000.ts
//	#EXT-X-ENDLIST
func (p *PlaylistCreator) createHLS(manifest model.MergeManifest, dir string) string {
	var sb strings.Builder

	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:3\n")
	sb.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(p.duration.Seconds()))))
	if manifest.Len() > 0 {
		sb.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", manifest.Entries[0].Index))
	}
	sb.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for i, e := range manifest.Entries {
		if i > 0 && e.Index != manifest.Entries[i-1].Index+1 {
			sb.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		sb.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", p.duration.Seconds()))
		sb.WriteString(entryName(e.Path, dir) + "\n")
	}

	sb.WriteString("#EXT-X-ENDLIST\n")
	return sb.String()
}

// createM3U generates an extended M3U playlist:
//
//	#EXTM3U
//	#EXTINF:10,Segment 0
//	segment_0000.ts
func (p *PlaylistCreator) createM3U(manifest model.MergeManifest, dir string) string {
	var sb strings.Builder

	sb.WriteString("#EXTM3U\n")
	for _, e := range manifest.Entries {
		sb.WriteString(fmt.Sprintf("#EXTINF:%d,Segment %d\n", int(p.duration.Seconds()), e.Index))
		sb.WriteString(entryName(e.Path, dir) + "\n")
	}

	return sb.String()
}

// WritePlaylist writes the playlist for manifest to path.
func (p *PlaylistCreator) WritePlaylist(ctx context.Context, path string, manifest model.MergeManifest) error {
	content := p.CreatePlaylist(manifest, filepath.Dir(path))
	return ioutils.WriteFile(ctx, path, []byte(content))
}
