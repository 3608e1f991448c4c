package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/diegotyner/Hudl-Downloader/internal/http"
	"github.com/diegotyner/Hudl-Downloader/internal/hudl"
	ioutils "github.com/diegotyner/Hudl-Downloader/internal/io"
	"github.com/diegotyner/Hudl-Downloader/internal/merge"
	"github.com/diegotyner/Hudl-Downloader/internal/throttle"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("config: invalid settings")

// OutputExtension is the container of the merged file.
const OutputExtension = ".mp4"

// Settings holds all configuration options.
type Settings struct {
	// Recording
	CDNBase    string `json:"cdn_base" yaml:"cdn_base"`
	StreamID   string `json:"stream_id" yaml:"stream_id"`
	MediaID    string `json:"media_id" yaml:"media_id"`
	Resolution int    `json:"resolution" yaml:"resolution"`
	StartIndex int    `json:"start_index" yaml:"start_index"`
	EndIndex   int    `json:"end_index" yaml:"end_index"`

	// Download settings
	DownloadsPath      string  `json:"downloads_path" yaml:"downloads_path"`
	Workers            int     `json:"workers" yaml:"workers"`
	MaxRetries         int     `json:"max_retries" yaml:"max_retries"`
	MinDelay           float64 `json:"min_delay" yaml:"min_delay"`
	MaxDelay           float64 `json:"max_delay" yaml:"max_delay"`
	RequestTimeout     float64 `json:"request_timeout" yaml:"request_timeout"`
	ThrottleBackoffMin float64 `json:"throttle_backoff_min" yaml:"throttle_backoff_min"`
	ThrottleBackoffMax float64 `json:"throttle_backoff_max" yaml:"throttle_backoff_max"`
	ErrorBackoffMin    float64 `json:"error_backoff_min" yaml:"error_backoff_min"`
	ErrorBackoffMax    float64 `json:"error_backoff_max" yaml:"error_backoff_max"`
	SkipExisting       bool    `json:"skip_existing" yaml:"skip_existing"`
	UserAgent          string  `json:"user_agent" yaml:"user_agent"`

	// Merge settings
	OutputName      string `json:"output_name" yaml:"output_name"`
	OutputDir       string `json:"output_dir" yaml:"output_dir"` // empty: DownloadsPath
	AllowGaps       bool   `json:"allow_gaps" yaml:"allow_gaps"`
	KeepSegments    bool   `json:"keep_segments" yaml:"keep_segments"`
	OverwriteOutput bool   `json:"overwrite_output" yaml:"overwrite_output"`
	FFmpegPath      string `json:"ffmpeg_path" yaml:"ffmpeg_path"`

	// WritePlaylist writes an .m3u8 over segments left on disk.
	WritePlaylist bool `json:"write_playlist" yaml:"write_playlist"`
}

// DefaultSettings returns settings with default values.
//
// The delays are deliberately conservative; the CDN answers bursts with
// 429 and 403.
func DefaultSettings() *Settings {
	return &Settings{
		CDNBase:    hudl.DefaultCDNBase,
		Resolution: int(hudl.Res720),
		StartIndex: 0,
		EndIndex:   800,

		DownloadsPath:      "downloads",
		Workers:            3,
		MaxRetries:         3,
		MinDelay:           1.5,
		MaxDelay:           3.0,
		RequestTimeout:     10,
		ThrottleBackoffMin: 5,
		ThrottleBackoffMax: 10,
		ErrorBackoffMin:    2,
		ErrorBackoffMax:    5,
		SkipExisting:       true,
		UserAgent:          "HudlDownloader",

		OutputName:    "game",
		FFmpegPath:    merge.FFmpegCommand,
		WritePlaylist: true,
	}
}

// Load reads settings from a JSON or YAML file, chosen by extension.
// A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return settings, nil
}

// Save writes settings to a JSON or YAML file, chosen by extension.
func (s *Settings) Save(path string) error {
	if err := ioutils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks the settings before any work starts.
func (s *Settings) Validate() error {
	if _, err := hudl.LookupRendition(hudl.Resolution(s.Resolution)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	var problems []string
	if s.StreamID == "" {
		problems = append(problems, "stream_id is required")
	}
	if s.MediaID == "" {
		problems = append(problems, "media_id is required")
	}
	if s.StartIndex < 0 {
		problems = append(problems, fmt.Sprintf("start_index %d is negative", s.StartIndex))
	}
	if s.EndIndex < s.StartIndex {
		problems = append(problems, fmt.Sprintf("end_index %d is before start_index %d", s.EndIndex, s.StartIndex))
	}
	if s.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if s.MaxRetries < 1 {
		problems = append(problems, "max_retries must be at least 1")
	}
	if s.MinDelay < 0 || s.MaxDelay < s.MinDelay {
		problems = append(problems, fmt.Sprintf("delay bounds [%g, %g] are invalid", s.MinDelay, s.MaxDelay))
	}
	if s.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if s.ThrottleBackoffMin < 0 || s.ThrottleBackoffMax < s.ThrottleBackoffMin {
		problems = append(problems, "throttle backoff window is invalid")
	}
	if s.ErrorBackoffMin < 0 || s.ErrorBackoffMax < s.ErrorBackoffMin {
		problems = append(problems, "error backoff window is invalid")
	}
	if ioutils.SanitizeFileName(s.OutputName) == "" {
		problems = append(problems, "output_name is empty")
	}
	if s.DownloadsPath == "" {
		problems = append(problems, "downloads_path is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// SegmentCount returns the number of indices in the configured range.
func (s *Settings) SegmentCount() int {
	if s.EndIndex < s.StartIndex {
		return 0
	}
	return s.EndIndex - s.StartIndex + 1
}

// OutputPath returns where the merged file is written:
// {output dir}/{name}_{resolution}.mp4.
func (s *Settings) OutputPath() string {
	dir := s.OutputDir
	if dir == "" {
		dir = s.DownloadsPath
	}
	name := fmt.Sprintf("%s_%d%s", ioutils.SanitizeFileName(s.OutputName), s.Resolution, OutputExtension)
	return filepath.Join(dir, name)
}

// SegmentDir returns the directory holding the segments of this recording:
// {downloads dir}/{stream}_{media}_{resolution}. Segment file names carry
// only the index, so every recording gets its own directory and a resumed
// run never picks up another recording's segments.
func (s *Settings) SegmentDir() string {
	name := fmt.Sprintf("%s_%s_%d", s.StreamID, s.MediaID, s.Resolution)
	return filepath.Join(s.DownloadsPath, ioutils.SanitizeFileName(name))
}

// PlaylistPath returns where the playlist over kept segments is written:
// {segment dir}/{name}_{resolution}.m3u8.
func (s *Settings) PlaylistPath() string {
	name := fmt.Sprintf("%s_%d%s", ioutils.SanitizeFileName(s.OutputName), s.Resolution, merge.FormatHLS.Extension())
	return filepath.Join(s.SegmentDir(), name)
}

// ApplySegmentURL fills the recording fields from a pasted segment URL. A
// resolution recovered from the URL replaces the configured one.
func (s *Settings) ApplySegmentURL(raw string) error {
	p, _, err := hudl.ParseSegmentURL(raw)
	if err != nil {
		return err
	}
	s.CDNBase = p.CDNBase
	s.StreamID = p.StreamID
	s.MediaID = p.MediaID
	if p.Resolution != 0 {
		s.Resolution = int(p.Resolution)
	}
	return nil
}

// ToResolverParams converts settings to hudl.Params.
func (s *Settings) ToResolverParams() hudl.Params {
	return hudl.Params{
		CDNBase:    s.CDNBase,
		StreamID:   s.StreamID,
		MediaID:    s.MediaID,
		Resolution: hudl.Resolution(s.Resolution),
	}
}

// ToGateOptions converts settings to throttle.Options.
func (s *Settings) ToGateOptions() throttle.Options {
	return throttle.Options{
		MinDelay: seconds(s.MinDelay),
		MaxDelay: seconds(s.MaxDelay),
	}
}

// ToHTTPOptions converts settings to http.Options.
func (s *Settings) ToHTTPOptions() http.Options {
	return http.Options{
		Timeout:   seconds(s.RequestTimeout),
		UserAgent: s.UserAgent,
	}
}

// ThrottleBackoff is the wait window after a 429 or 403.
func (s *Settings) ThrottleBackoff() throttle.Window {
	return throttle.Window{Min: seconds(s.ThrottleBackoffMin), Max: seconds(s.ThrottleBackoffMax)}
}

// ErrorBackoff is the wait window after a transport error.
func (s *Settings) ErrorBackoff() throttle.Window {
	return throttle.Window{Min: seconds(s.ErrorBackoffMin), Max: seconds(s.ErrorBackoffMax)}
}

// ToMergeOptions converts settings to merge.Options.
func (s *Settings) ToMergeOptions() merge.Options {
	return merge.Options{
		Binary:       s.FFmpegPath,
		Overwrite:    s.OverwriteOutput,
		KeepSegments: s.KeepSegments,
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
