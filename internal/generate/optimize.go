package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"storyboard/internal/services"
)

// ToWebP converts an image to WebP at the given quality (1-100) using
// ffmpeg and returns the output path.
func ToWebP(ctx context.Context, ffmpegPath, inputPath, outputPath string, quality int) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", services.Wrap(services.ErrGeneration, "optimize", "webp",
			fmt.Sprintf("input image not found: %s", inputPath), err)
	}
	if outputPath == "" {
		outputPath = replaceExt(inputPath, ".webp")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrGeneration, "optimize", "webp", outputPath, err)
	}

	args := []string{
		"-i", inputPath,
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(quality),
		"-y",
		outputPath,
	}
	if err := runFFmpeg(ctx, ffmpegPath, args); err != nil {
		return "", err
	}
	return outputPath, nil
}

// OptimizeAudio converts a WAV file to Opus using ffmpeg. Quality maps to
// libopus compression_level, 0 (smallest) through 10 (best).
func OptimizeAudio(ctx context.Context, ffmpegPath, inputPath, outputPath string, quality int) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", services.Wrap(services.ErrGeneration, "optimize", "opus",
			fmt.Sprintf("input audio not found: %s", inputPath), err)
	}
	if outputPath == "" {
		outputPath = replaceExt(inputPath, ".opus")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrGeneration, "optimize", "opus", outputPath, err)
	}

	args := []string{
		"-i", inputPath,
		"-c:a", "libopus",
		"-vbr", "on",
		"-compression_level", strconv.Itoa(quality),
		"-y",
		outputPath,
	}
	if err := runFFmpeg(ctx, ffmpegPath, args); err != nil {
		return "", err
	}
	return outputPath, nil
}

func runFFmpeg(ctx context.Context, ffmpegPath string, args []string) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrExternalTool, "optimize", "ffmpeg",
				"ffmpeg is not installed or not on PATH", err)
		}
		detail := lastLine(stderr.String())
		return services.Wrap(services.ErrExternalTool, "optimize", "ffmpeg", detail, err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func replaceExt(path, ext string) string {
	return path[:len(path)-len(filepath.Ext(path))] + ext
}
