package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubFFmpeg writes a script that creates its final argument and exits 0,
// standing in for a real ffmpeg binary.
func stubFFmpeg(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\n: > \"$last\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestToWebP(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "image.png")
	if err := os.WriteFile(input, []byte("png"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	output := filepath.Join(dir, "frame", "image.webp")
	got, err := ToWebP(context.Background(), stubFFmpeg(t), input, output, 80)
	if err != nil {
		t.Fatalf("ToWebP: %v", err)
	}
	if got != output {
		t.Fatalf("output path = %s, want %s", got, output)
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestToWebPDerivesOutputPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "image.png")
	if err := os.WriteFile(input, []byte("png"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	got, err := ToWebP(context.Background(), stubFFmpeg(t), input, "", 80)
	if err != nil {
		t.Fatalf("ToWebP: %v", err)
	}
	if got != filepath.Join(dir, "image.webp") {
		t.Fatalf("derived output = %s", got)
	}
}

func TestToWebPMissingInput(t *testing.T) {
	_, err := ToWebP(context.Background(), stubFFmpeg(t), filepath.Join(t.TempDir(), "absent.png"), "", 80)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if !strings.Contains(err.Error(), "input image not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestOptimizeAudioDerivesOutputPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tts.wav")
	if err := os.WriteFile(input, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	got, err := OptimizeAudio(context.Background(), stubFFmpeg(t), input, "", 10)
	if err != nil {
		t.Fatalf("OptimizeAudio: %v", err)
	}
	if got != filepath.Join(dir, "tts.opus") {
		t.Fatalf("derived output = %s", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestOptimizeAudioReportsFFmpegFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tts.wav")
	if err := os.WriteFile(input, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	failing := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho 'Error while opening encoder' >&2\nexit 1\n"
	if err := os.WriteFile(failing, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	_, err := OptimizeAudio(context.Background(), failing, input, "", 10)
	if err == nil {
		t.Fatal("expected error from failing ffmpeg")
	}
	if !strings.Contains(err.Error(), "Error while opening encoder") {
		t.Fatalf("stderr detail missing: %v", err)
	}
}
