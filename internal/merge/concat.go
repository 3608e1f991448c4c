package merge

import (
	"context"
	"path/filepath"
	"strings"

	ioutils "github.com/diegotyner/Hudl-Downloader/internal/io"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// DefaultListName is the name of the transient concat list.
const DefaultListName = "file_list.txt"

// BuildConcatList renders manifest in ffmpeg's concat demuxer format:
//
//	file 'segment_0000.ts'
//	file 'segment_0001.ts'
//
// Entries in listDir are written by base name so the list stays valid when
// the directory moves; others are written as absolute paths. Single quotes
// inside names are escaped the way the demuxer expects ('\'').
func BuildConcatList(manifest model.MergeManifest, listDir string) string {
	var sb strings.Builder

	dir := absDir(listDir)
	for _, e := range manifest.Entries {
		sb.WriteString("file '")
		sb.WriteString(escapeQuote(entryName(e.Path, dir)))
		sb.WriteString("'\n")
	}

	return sb.String()
}

// absDir resolves p against the working directory. When that cannot be
// read, the cleaned p is returned so relative paths still compare equal.
func absDir(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// entryName returns the base name of path when it lives in dir (as resolved
// by absDir), and the resolved path otherwise.
func entryName(path, dir string) string {
	resolved := absDir(path)
	if filepath.Dir(resolved) == dir {
		return filepath.Base(resolved)
	}
	return resolved
}

// WriteConcatList writes the concat list for manifest to path.
func WriteConcatList(ctx context.Context, path string, manifest model.MergeManifest) error {
	content := BuildConcatList(manifest, filepath.Dir(path))
	return ioutils.WriteFile(ctx, path, []byte(content))
}

func escapeQuote(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
