package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diegotyner/Hudl-Downloader/internal/hudl"
)

func validSettings() *Settings {
	s := DefaultSettings()
	s.StreamID = "sn-zpcczwe0"
	s.MediaID = "b933ecda"
	s.Resolution = 270
	s.StartIndex = 0
	s.EndIndex = 15
	s.OutputName = "Wildcats"
	return s
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Workers != 3 {
		t.Errorf("Workers = %d, want 3", s.Workers)
	}
	if s.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", s.MaxRetries)
	}
	if s.MinDelay != 1.5 || s.MaxDelay != 3.0 {
		t.Errorf("delays = %g/%g, want 1.5/3", s.MinDelay, s.MaxDelay)
	}
	if s.RequestTimeout != 10 {
		t.Errorf("RequestTimeout = %g, want 10", s.RequestTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"resolution 360", func(s *Settings) { s.Resolution = 360 }, "unsupported resolution"},
		{"missing stream id", func(s *Settings) { s.StreamID = "" }, "stream_id"},
		{"missing media id", func(s *Settings) { s.MediaID = "" }, "media_id"},
		{"negative start", func(s *Settings) { s.StartIndex = -1 }, "negative"},
		{"end before start", func(s *Settings) { s.StartIndex = 5; s.EndIndex = 4 }, "end_index"},
		{"zero workers", func(s *Settings) { s.Workers = 0 }, "workers"},
		{"zero retries", func(s *Settings) { s.MaxRetries = 0 }, "max_retries"},
		{"inverted delays", func(s *Settings) { s.MinDelay = 3; s.MaxDelay = 1 }, "delay"},
		{"zero timeout", func(s *Settings) { s.RequestTimeout = 0 }, "request_timeout"},
		{"bad throttle window", func(s *Settings) { s.ThrottleBackoffMax = 1 }, "throttle"},
		{"bad output name", func(s *Settings) { s.OutputName = "..." }, "output_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.modify(s)
			err := s.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("expected ErrInvalidSettings, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ResolutionWrapsResolverError(t *testing.T) {
	s := validSettings()
	s.Resolution = 480
	if err := s.Validate(); !errors.Is(err, hudl.ErrUnsupportedResolution) {
		t.Errorf("expected hudl.ErrUnsupportedResolution in chain, got %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Workers != DefaultSettings().Workers {
		t.Errorf("expected defaults, got %+v", s)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json")
	os.WriteFile(path, []byte(`{"stream_id":"sn-abc","media_id":"m1","resolution":540,"workers":2}`), 0644)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.StreamID != "sn-abc" || s.MediaID != "m1" || s.Resolution != 540 || s.Workers != 2 {
		t.Errorf("unexpected settings: %+v", s)
	}
	// Unset fields keep their defaults.
	if s.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", s.MaxRetries)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	content := `
stream_id: sn-zpcczwe0
media_id: b933ecda
resolution: 1080
start_index: 3
end_index: 40
min_delay: 0.5
max_delay: 1
allow_gaps: true
`
	os.WriteFile(path, []byte(content), 0644)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Resolution != 1080 || s.StartIndex != 3 || s.EndIndex != 40 {
		t.Errorf("unexpected settings: %+v", s)
	}
	if !s.AllowGaps {
		t.Error("AllowGaps should be true")
	}
	if got := s.ToGateOptions().MinDelay; got != 500*time.Millisecond {
		t.Errorf("MinDelay = %v, want 500ms", got)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"workers":`), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := validSettings()
			want.KeepSegments = true

			if err := want.Save(path); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if *got != *want {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	s := validSettings()
	if got, want := s.OutputPath(), filepath.Join("downloads", "Wildcats_270.mp4"); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}

	s.OutputDir = "/videos"
	s.OutputName = "Home: Away"
	if got, want := s.OutputPath(), filepath.Join("/videos", "Home_ Away_270.mp4"); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}

func TestPlaylistPath(t *testing.T) {
	s := validSettings()
	s.OutputDir = "/videos"
	if got, want := s.PlaylistPath(), filepath.Join(s.SegmentDir(), "Wildcats_270.m3u8"); got != want {
		t.Errorf("PlaylistPath() = %q, want %q", got, want)
	}
}

func TestSegmentDir(t *testing.T) {
	s := validSettings()
	if got, want := s.SegmentDir(), filepath.Join("downloads", s.StreamID+"_"+s.MediaID+"_270"); got != want {
		t.Errorf("SegmentDir() = %q, want %q", got, want)
	}

	other := validSettings()
	other.MediaID = "different"
	if other.SegmentDir() == s.SegmentDir() {
		t.Error("different media must not share a segment dir")
	}
	other = validSettings()
	other.Resolution = 1080
	if other.SegmentDir() == s.SegmentDir() {
		t.Error("different resolutions must not share a segment dir")
	}
}

func TestApplySegmentURL(t *testing.T) {
	s := DefaultSettings()
	err := s.ApplySegmentURL("https://di2g5yar1p6ph.cloudfront.net/sn-zpcczwe0/540p-lo.hls/media-b933ecda_b1680800_d10000_9.ts")
	if err != nil {
		t.Fatalf("ApplySegmentURL: %v", err)
	}
	if s.StreamID != "sn-zpcczwe0" || s.MediaID != "b933ecda" || s.Resolution != 540 {
		t.Errorf("unexpected settings: %+v", s)
	}

	if err := s.ApplySegmentURL("not a url"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestConversions(t *testing.T) {
	s := validSettings()

	if p := s.ToResolverParams(); p.Resolution != hudl.Res270 || p.StreamID != s.StreamID {
		t.Errorf("ToResolverParams() = %+v", p)
	}
	if w := s.ThrottleBackoff(); w.Min != 5*time.Second || w.Max != 10*time.Second {
		t.Errorf("ThrottleBackoff() = %+v", w)
	}
	if w := s.ErrorBackoff(); w.Min != 2*time.Second || w.Max != 5*time.Second {
		t.Errorf("ErrorBackoff() = %+v", w)
	}
	if o := s.ToHTTPOptions(); o.Timeout != 10*time.Second {
		t.Errorf("ToHTTPOptions().Timeout = %v", o.Timeout)
	}
	if s.SegmentCount() != 16 {
		t.Errorf("SegmentCount() = %d, want 16", s.SegmentCount())
	}
}
