package merge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	ioutils "github.com/diegotyner/Hudl-Downloader/internal/io"
	"github.com/diegotyner/Hudl-Downloader/internal/model"
)

// FFmpeg argument constants.
const (
	FFmpegCommand = "ffmpeg"
	ConcatFormat  = "concat"
	VideoStream   = "0:v"
	AudioStream   = "0:a"
	CopyCodec     = "copy"
)

// stderrTail bounds how much multiplexer output is kept on failure.
const stderrTail = 2048

// ErrEmptyManifest is returned when there is nothing to merge.
var ErrEmptyManifest = errors.New("merge: no segments to concatenate")

// Merger concatenates ordered segment files into one container.
type Merger interface {
	Merge(ctx context.Context, manifest model.MergeManifest, output string) error
}

// MergeError reports a failed multiplexer run. Segment files and the concat
// list are left on disk.
type MergeError struct {
	Output   string
	ListPath string
	Err      error
	Stderr   string
}

func (e *MergeError) Error() string {
	msg := fmt.Sprintf("merge into %s failed: %v", e.Output, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// Runner executes name with args and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Options configures FFmpeg.
type Options struct {
	// Binary is the ffmpeg executable. Default: "ffmpeg" from PATH.
	Binary string

	// ListName is the concat list file name, created next to the segments.
	// Default: "file_list.txt"
	ListName string

	// Overwrite passes -y so an existing output is replaced.
	Overwrite bool

	// KeepSegments skips removal of segments and the list after success.
	KeepSegments bool

	// Run replaces the process runner. Default: ExecRunner.
	Run Runner

	Log zerolog.Logger
}

// FFmpeg merges segments with ffmpeg's concat demuxer, copying the first
// video and audio streams without re-encoding.
type FFmpeg struct {
	opts Options
}

// NewFFmpeg creates an FFmpeg merger.
func NewFFmpeg(opts Options) *FFmpeg {
	if opts.Binary == "" {
		opts.Binary = FFmpegCommand
	}
	if opts.ListName == "" {
		opts.ListName = DefaultListName
	}
	if opts.Run == nil {
		opts.Run = ExecRunner
	}
	return &FFmpeg{opts: opts}
}

// BuildArgs builds the ffmpeg command arguments.
func (f *FFmpeg) BuildArgs(listPath, output string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", ConcatFormat, // concat demuxer
		"-safe", "0", // allow any path in the list
		"-i", listPath,
		"-map", VideoStream,
		"-map", AudioStream,
		"-c", CopyCodec, // no re-encode
	}
	if f.opts.Overwrite {
		args = append(args, "-y")
	}
	return append(args, output)
}

// Merge writes the concat list, runs ffmpeg and, on success, removes the
// list and every segment in manifest. On failure nothing is removed and the
// error is a *MergeError.
func (f *FFmpeg) Merge(ctx context.Context, manifest model.MergeManifest, output string) error {
	if manifest.Len() == 0 {
		return ErrEmptyManifest
	}

	listPath := filepath.Join(filepath.Dir(manifest.Entries[0].Path), f.opts.ListName)
	if err := WriteConcatList(ctx, listPath, manifest); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	log := f.opts.Log.With().Str("output", output).Int("segments", manifest.Len()).Logger()
	log.Debug().Strs("args", f.BuildArgs(listPath, output)).Msg("Running ffmpeg")

	out, err := f.opts.Run(ctx, f.opts.Binary, f.BuildArgs(listPath, output)...)
	if err != nil {
		return &MergeError{
			Output:   output,
			ListPath: listPath,
			Err:      err,
			Stderr:   tail(string(out), stderrTail),
		}
	}

	if f.opts.KeepSegments {
		return nil
	}

	paths := append(manifest.Paths(), listPath)
	if err := ioutils.RemoveFiles(paths...); err != nil {
		// The merge itself succeeded; leftovers are only untidy.
		log.Warn().Err(err).Msg("Failed to remove intermediate files")
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
