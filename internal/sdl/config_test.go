package sdl

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Generation.MaxConcurrent != 10 {
		t.Fatalf("unexpected max_concurrent: %d", cfg.Generation.MaxConcurrent)
	}
	if cfg.Composite.Movie.OutputFilename != "movie.mp4" {
		t.Fatalf("unexpected movie filename: %s", cfg.Composite.Movie.OutputFilename)
	}
	if cfg.Composite.Movie.NoAudioLength != 5.0 {
		t.Fatalf("unexpected no_audio_length: %g", cfg.Composite.Movie.NoAudioLength)
	}
}

func TestConfigValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StoryboardConfig)
		wantErr string
	}{
		{
			name:    "empty output directory",
			mutate:  func(c *StoryboardConfig) { c.Output.Directory = "" },
			wantErr: "output.directory",
		},
		{
			name:    "unknown image vendor",
			mutate:  func(c *StoryboardConfig) { c.Image.DefaultModel.Vendor = "stability" },
			wantErr: "vendor \"stability\" is not supported",
		},
		{
			name:    "unknown image model",
			mutate:  func(c *StoryboardConfig) { c.Image.DefaultModel.Model = "dall-e-3" },
			wantErr: "not valid for vendor",
		},
		{
			name:    "image quality too high",
			mutate:  func(c *StoryboardConfig) { c.Image.Optimize.Quality = 101 },
			wantErr: "image.optimize.quality",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *StoryboardConfig) { c.Generation.MaxConcurrent = 0 },
			wantErr: "generation.max_concurrent",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *StoryboardConfig) { c.Generation.TimeoutSeconds = 0 },
			wantErr: "generation.timeout_seconds",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *StoryboardConfig) { c.Generation.Retry.MaxAttempts = 0 },
			wantErr: "generation.retry.max_attempts",
		},
		{
			name:    "negative no_audio_length",
			mutate:  func(c *StoryboardConfig) { c.Composite.Movie.NoAudioLength = -1 },
			wantErr: "no_audio_length",
		},
		{
			name:    "bad resolution",
			mutate:  func(c *StoryboardConfig) { c.Composite.Movie.Resolution = "widescreen" },
			wantErr: "invalid resolution",
		},
		{
			name:    "crf out of range",
			mutate:  func(c *StoryboardConfig) { c.Composite.Movie.VideoQuality = 52 },
			wantErr: "video_quality",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParseResolution(t *testing.T) {
	width, height, err := ParseResolution("1920x1080")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if width != 1920 || height != 1080 {
		t.Fatalf("got %dx%d", width, height)
	}

	for _, bad := range []string{"", "1920", "1920x", "x1080", "0x1080", "1920x-1", "axb"} {
		if _, _, err := ParseResolution(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestHasKnownImageExtension(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"photo.png", true},
		{"photo.JPG", true},
		{"photo.webp", true},
		{"clip.mp4", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := HasKnownImageExtension(tt.path); got != tt.want {
			t.Fatalf("HasKnownImageExtension(%q) = %t, want %t", tt.path, got, tt.want)
		}
	}
}

func TestKnownVoice(t *testing.T) {
	if !KnownVoice("Aoede") {
		t.Fatal("expected Aoede to be known")
	}
	if !KnownVoice("alloy") {
		t.Fatal("expected alloy to be known")
	}
	if KnownVoice("NotAVoice") {
		t.Fatal("expected NotAVoice to be unknown")
	}
}
