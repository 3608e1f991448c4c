// Package merge turns an ordered set of MPEG-TS segments into one video file.
//
// The Merger interface is the seam between the fetch pipeline and the
// external multiplexer; tests substitute a fake.
//
// # FFmpeg
//
//	m := merge.NewFFmpeg(merge.Options{Overwrite: true})
//	err := m.Merge(ctx, manifest, "Wildcats_720.mp4")
//	var merr *merge.MergeError
//	if errors.As(err, &merr) {
//	    // segments and merr.ListPath are still on disk
//	}
//
// The concat list is written next to the segments:
//
//	file 'segment_0000.ts'
//	file 'segment_0001.ts'
//
// and ffmpeg is invoked as
//
//	ffmpeg -f concat -safe 0 -i file_list.txt -map 0:v -map 0:a -c copy out.mp4
//
// After a successful run the list and all segment files are removed. A
// failed run removes nothing so the download can be merged by hand.
//
// # Playlists
//
// When segments stay on disk, PlaylistCreator writes an HLS (.m3u8) or
// extended M3U playlist over them so they can be played directly.
package merge
