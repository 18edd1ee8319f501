package composite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"storyboard/internal/generate"
	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

// frameEntry pairs one frame's image with its audio and display duration.
type frameEntry struct {
	imagePath string
	audioPath string
	duration  float64
}

// Assembler builds movies from generated scene metadata.
type Assembler struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithTools sets the ffmpeg and ffprobe binaries.
func WithTools(ffmpeg, ffprobe string) Option {
	return func(a *Assembler) {
		if ffmpeg != "" {
			a.ffmpeg = ffmpeg
		}
		if ffprobe != "" {
			a.ffprobe = ffprobe
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// NewAssembler constructs a movie assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{ffmpeg: "ffmpeg", ffprobe: "ffprobe", logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateMovie reads the root metadata under sceneFolder and renders every
// frame of every indexed scene, in order, into a single video at
// outputPath.
func (a *Assembler) CreateMovie(ctx context.Context, sceneFolder, outputPath string, cfg sdl.MovieConfig) error {
	entries, err := a.collectFrameEntries(sceneFolder, cfg)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return services.Wrap(services.ErrNotFound, "composite", "movie",
			"no scenes found in metadata.json", nil)
	}

	tmpDir, err := os.MkdirTemp("", "storyboard-movie-*")
	if err != nil {
		return services.Wrap(services.ErrGeneration, "composite", "movie", "create temp dir", err)
	}
	defer os.RemoveAll(tmpDir)

	width, height, err := sdl.ParseResolution(cfg.Resolution)
	if err != nil {
		return err
	}

	segments := make([]string, 0, len(entries))
	for i, entry := range entries {
		if _, err := os.Stat(entry.imagePath); err != nil {
			return services.Wrap(services.ErrNotFound, "composite", "movie",
				fmt.Sprintf("image not found: %s", entry.imagePath), err)
		}
		segment := filepath.Join(tmpDir, fmt.Sprintf("video_segment_%04d.mp4", i))
		if err := a.videoSegment(ctx, entry, segment, width, height, cfg); err != nil {
			return err
		}
		segments = append(segments, segment)
	}

	videoOnly := filepath.Join(tmpDir, "video_only.mp4")
	if err := a.concatSegments(ctx, segments, videoOnly); err != nil {
		return err
	}

	audioTrack := filepath.Join(tmpDir, "audio.aac")
	if err := a.audioTrack(ctx, entries, audioTrack, tmpDir, cfg); err != nil {
		return err
	}

	return a.mux(ctx, videoOnly, audioTrack, outputPath)
}

// collectFrameEntries walks the root and scene metadata and resolves each
// frame's asset paths and duration. Asset paths in metadata are relative to
// the scene folder's parent.
func (a *Assembler) collectFrameEntries(sceneFolder string, cfg sdl.MovieConfig) ([]frameEntry, error) {
	rootPath := filepath.Join(sceneFolder, "metadata.json")
	data, err := os.ReadFile(rootPath)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "composite", "movie", rootPath, err)
	}
	var root generate.RootMetadata
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, services.Wrap(services.ErrLoad, "composite", "movie", rootPath, err)
	}

	assetRoot := filepath.Dir(sceneFolder)
	var entries []frameEntry

	for _, scene := range root.Scenes {
		scenePath := filepath.Join(sceneFolder, scene.MetadataPath)
		data, err := os.ReadFile(scenePath)
		if err != nil {
			return nil, services.Wrap(services.ErrLoad, "composite", "movie", scenePath, err)
		}
		var metadata generate.SceneMetadata
		if err := json.Unmarshal(data, &metadata); err != nil {
			return nil, services.Wrap(services.ErrLoad, "composite", "movie", scenePath, err)
		}

		for _, frame := range metadata.Frames {
			entry := frameEntry{
				imagePath: filepath.Join(assetRoot, frame.Assets.Image.Path),
				duration:  cfg.NoAudioLength,
			}
			if frame.Assets.Audio != nil {
				entry.audioPath = filepath.Join(assetRoot, frame.Assets.Audio.Path)
				entry.duration, err = a.AudioDuration(context.Background(), entry.audioPath)
				if err != nil {
					return nil, err
				}
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// AudioDuration returns an audio file's duration in seconds via ffprobe.
func (a *Assembler) AudioDuration(ctx context.Context, audioPath string) (float64, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return 0, services.Wrap(services.ErrNotFound, "composite", "ffprobe",
			fmt.Sprintf("audio file not found: %s", audioPath), err)
	}

	out, err := a.run(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "composite", "ffprobe",
			fmt.Sprintf("unexpected duration output %q for %s", strings.TrimSpace(out), audioPath), err)
	}
	return duration, nil
}

// videoSegment renders one still image into a silent video segment, scaled
// and padded to the target resolution.
func (a *Assembler) videoSegment(ctx context.Context, entry frameEntry, outputPath string, width, height int, cfg sdl.MovieConfig) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		width, height, width, height)

	_, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-loop", "1",
		"-framerate", strconv.Itoa(cfg.FPS),
		"-t", formatSeconds(entry.duration),
		"-i", entry.imagePath,
		"-vf", filter,
		"-c:v", cfg.VideoCodec,
		"-crf", strconv.Itoa(cfg.VideoQuality),
		"-pix_fmt", "yuv420p",
		"-an",
		outputPath)
	return err
}

// audioTrack builds one continuous audio track covering every frame. Frames
// without audio contribute silence of the configured duration. Segments
// stay PCM until the final AAC conversion so concatenation is exact.
func (a *Assembler) audioTrack(ctx context.Context, entries []frameEntry, outputPath, tmpDir string, cfg sdl.MovieConfig) error {
	segments := make([]string, 0, len(entries))
	for i, entry := range entries {
		segment := filepath.Join(tmpDir, fmt.Sprintf("audio_%04d.wav", i))
		var err error
		if entry.audioPath != "" {
			_, err = a.run(ctx, a.ffmpeg,
				"-y",
				"-i", entry.audioPath,
				"-t", formatSeconds(entry.duration),
				"-c:a", "pcm_s16le",
				"-ar", "48000",
				segment)
		} else {
			_, err = a.run(ctx, a.ffmpeg,
				"-y",
				"-f", "lavfi",
				"-t", formatSeconds(entry.duration),
				"-i", "anullsrc=channel_layout=stereo:sample_rate=48000",
				"-c:a", "pcm_s16le",
				segment)
		}
		if err != nil {
			return err
		}
		segments = append(segments, segment)
	}

	wavTrack := filepath.Join(tmpDir, "audio.wav")
	if err := a.concatSegments(ctx, segments, wavTrack); err != nil {
		return err
	}

	_, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", wavTrack,
		"-c:a", cfg.AudioCodec,
		"-b:a", cfg.AudioBitrate,
		outputPath)
	return err
}

// concatSegments joins media segments with the concat demuxer, stream-copied.
func (a *Assembler) concatSegments(ctx context.Context, segments []string, outputPath string) error {
	listFile, err := os.CreateTemp("", "storyboard-concat-*.txt")
	if err != nil {
		return services.Wrap(services.ErrGeneration, "composite", "concat", "create list file", err)
	}
	defer os.Remove(listFile.Name())

	for _, segment := range segments {
		abs, err := filepath.Abs(segment)
		if err != nil {
			abs = segment
		}
		fmt.Fprintf(listFile, "file '%s'\n", abs)
	}
	if err := listFile.Close(); err != nil {
		return services.Wrap(services.ErrGeneration, "composite", "concat", listFile.Name(), err)
	}

	_, err = a.run(ctx, a.ffmpeg,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c", "copy",
		outputPath)
	return err
}

func (a *Assembler) mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	_, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
		outputPath)
	return err
}

func (a *Assembler) run(ctx context.Context, tool string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", services.Wrap(services.ErrExternalTool, "composite", filepath.Base(tool),
				fmt.Sprintf("%s not found, install ffmpeg first", filepath.Base(tool)), err)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		a.logger.Error("external tool failed", "tool", tool, "error", detail)
		return "", services.Wrap(services.ErrExternalTool, "composite", filepath.Base(tool), detail, err)
	}
	return stdout.String(), nil
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
