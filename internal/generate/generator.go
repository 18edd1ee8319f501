package generate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"storyboard/internal/media"
	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

// AssetResult describes one generated asset as recorded in scene metadata.
type AssetResult struct {
	Path   string `json:"path"`
	Hash   string `json:"hash"`
	Format string `json:"format"`
}

// FrameResult collects the generated assets of a single frame.
type FrameResult struct {
	FrameID      string
	Speaker      any
	Dialogue     any
	Image        AssetResult
	Audio        *AssetResult
	TemplateUsed string
}

// SceneResult collects the frame results of a scene along with any asset
// tasks that failed.
type SceneResult struct {
	SceneID      string
	SceneName    string
	Frames       []FrameResult
	FailedAssets []*AssetTask
}

// Failed reports whether any asset in the scene failed.
func (r SceneResult) Failed() bool { return len(r.FailedAssets) > 0 }

// Generator runs asset generation for a resolved scene graph. Frames and
// scenes fan out concurrently; the semaphore bounds in-flight backend calls.
type Generator struct {
	graph  *sdl.SceneGraph
	config sdl.StoryboardConfig
	images ImageBackend
	speech SpeechBackend

	logger  *slog.Logger
	notify  notifier
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	retry   RetryPolicy
	timeout time.Duration
	ffmpeg  string
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// WithCallback registers a progress callback for lifecycle events.
func WithCallback(callback ProgressCallback) Option {
	return func(g *Generator) { g.notify.callback = callback }
}

// WithRetryPolicy overrides the retry policy derived from the document
// configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(g *Generator) { g.retry = policy }
}

// WithRateLimit caps backend calls at the given requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(g *Generator) {
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithFFmpegPath sets the ffmpeg binary used for asset optimization.
func WithFFmpegPath(path string) Option {
	return func(g *Generator) { g.ffmpeg = path }
}

// New builds a Generator for the graph. Concurrency, timeout, and retry
// settings come from the graph's configuration unless overridden.
func New(graph *sdl.SceneGraph, images ImageBackend, speech SpeechBackend, opts ...Option) *Generator {
	cfg := graph.Config
	g := &Generator{
		graph:   graph,
		config:  cfg,
		images:  images,
		speech:  speech,
		logger:  slog.Default(),
		sem:     semaphore.NewWeighted(int64(cfg.Generation.MaxConcurrent)),
		retry:   PolicyFromConfig(cfg.Generation.Retry),
		timeout: time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		ffmpeg:  "ffmpeg",
	}
	for _, opt := range opts {
		opt(g)
	}
	g.notify.logger = g.logger
	return g
}

// GenerateScenes generates the named scenes concurrently. A scene that
// fails outright is logged and omitted from the results; other scenes are
// unaffected.
func (g *Generator) GenerateScenes(ctx context.Context, sceneIDs []string, outputBase string) []SceneResult {
	if outputBase == "" {
		outputBase = filepath.Join(g.config.Output.Directory, "scenes")
	}

	results := make([]*SceneResult, len(sceneIDs))
	var group errgroup.Group
	for i, sceneID := range sceneIDs {
		group.Go(func() error {
			result, err := g.GenerateScene(ctx, sceneID, outputBase)
			if err != nil {
				g.logger.Error("scene generation failed", "scene", sceneID, "error", err)
				return nil
			}
			results[i] = &result
			return nil
		})
	}
	group.Wait()

	out := make([]SceneResult, 0, len(sceneIDs))
	for _, result := range results {
		if result != nil {
			out = append(out, *result)
		}
	}
	return out
}

// GenerateScene generates every frame of one scene concurrently.
func (g *Generator) GenerateScene(ctx context.Context, sceneID, outputBase string) (SceneResult, error) {
	if outputBase == "" {
		outputBase = filepath.Join(g.config.Output.Directory, "scenes")
	}

	scene, ok := g.graph.SceneByID(sceneID)
	if !ok {
		return SceneResult{}, services.Wrap(services.ErrNotFound, "generate", "scene",
			fmt.Sprintf("scene not found: %s", sceneID), nil)
	}

	sceneDir := filepath.Join(outputBase, sceneID)
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return SceneResult{}, services.Wrap(services.ErrGeneration, "generate", "scene", sceneDir, err)
	}

	type frameOutcome struct {
		result   FrameResult
		failures []*AssetTask
		err      error
	}

	outcomes := make([]frameOutcome, len(scene.Frames))
	var group errgroup.Group
	for i, frame := range scene.Frames {
		group.Go(func() error {
			result, failures, err := g.generateFrameAssets(ctx, frame, sceneDir, nil, true)
			outcomes[i] = frameOutcome{result: result, failures: failures, err: err}
			return nil
		})
	}
	group.Wait()

	result := SceneResult{SceneID: scene.ID, SceneName: scene.Name}
	for i, outcome := range outcomes {
		result.FailedAssets = append(result.FailedAssets, outcome.failures...)
		if outcome.err != nil {
			g.logger.Error("frame generation failed",
				"scene", sceneID, "frame", scene.Frames[i].ID, "error", outcome.err)
			continue
		}
		result.Frames = append(result.Frames, outcome.result)
	}

	g.notify.sceneComplete(sceneID)
	return result, nil
}

// GenerateFrameSelective regenerates only the requested asset types of one
// frame. With useCached false the cache is bypassed and the cache entry is
// rewritten.
func (g *Generator) GenerateFrameSelective(ctx context.Context, sceneID, frameID, sceneDir string, assetTypes map[AssetType]bool, useCached bool) (FrameResult, []*AssetTask, error) {
	scene, ok := g.graph.SceneByID(sceneID)
	if !ok {
		return FrameResult{}, nil, services.Wrap(services.ErrNotFound, "generate", "scene",
			fmt.Sprintf("scene not found: %s", sceneID), nil)
	}
	frame, ok := scene.FrameByID(frameID)
	if !ok {
		return FrameResult{}, nil, services.Wrap(services.ErrNotFound, "generate", "frame",
			fmt.Sprintf("frame not found: %s.%s", sceneID, frameID), nil)
	}
	if assetTypes[AssetAudio] && frame.TTS == nil {
		return FrameResult{}, nil, services.Wrap(services.ErrGeneration, "generate", "frame",
			fmt.Sprintf("frame '%s.%s' has no TTS configuration, cannot generate audio asset", sceneID, frameID), nil)
	}

	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return FrameResult{}, nil, services.Wrap(services.ErrGeneration, "generate", "frame", sceneDir, err)
	}

	return g.generateFrameAssets(ctx, frame, sceneDir, assetTypes, useCached)
}

// generateFrameAssets generates the image and, when configured, the audio
// asset of a frame in parallel. assetTypes nil means all. An image failure
// fails the frame; an audio failure is recorded but keeps the frame.
func (g *Generator) generateFrameAssets(ctx context.Context, frame sdl.Frame, sceneDir string, assetTypes map[AssetType]bool, useCached bool) (FrameResult, []*AssetTask, error) {
	frameDir := filepath.Join(sceneDir, frame.ID)
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		return FrameResult{}, nil, services.Wrap(services.ErrGeneration, "generate", "frame", frameDir, err)
	}

	template, haveTemplate := g.graph.Assets.ImageTemplateByID(frame.Image.Template)
	wantImage := assetTypes == nil || assetTypes[AssetImage]
	wantAudio := (assetTypes == nil || assetTypes[AssetAudio]) && frame.TTS != nil

	if wantImage && !haveTemplate {
		return FrameResult{}, nil, services.Wrap(services.ErrNotFound, "generate", "image template",
			fmt.Sprintf("image template not found: %s", frame.Image.Template), nil)
	}

	var (
		imageTask  = &AssetTask{SceneID: frame.SceneID, FrameID: frame.ID, Type: AssetImage, Status: StatusPending}
		audioTask  = &AssetTask{SceneID: frame.SceneID, FrameID: frame.ID, Type: AssetAudio, Status: StatusPending}
		imageAsset AssetResult
		audioAsset *AssetResult
		imageErr   error
		audioErr   error
		wg         sync.WaitGroup
	)

	if wantImage {
		wg.Add(1)
		go func() {
			defer wg.Done()
			imageAsset, imageErr = g.generateImageAsset(ctx, imageTask, frame, template, frameDir, useCached)
		}()
	}
	if wantAudio {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var result AssetResult
			result, audioErr = g.generateAudioAsset(ctx, audioTask, frame, frameDir, useCached)
			if audioErr == nil {
				audioAsset = &result
			}
		}()
	}
	wg.Wait()

	var failures []*AssetTask
	if imageErr != nil {
		failures = append(failures, imageTask)
		return FrameResult{}, failures, imageErr
	}
	if audioErr != nil {
		failures = append(failures, audioTask)
	}

	var dialogue any
	if frame.TTS != nil {
		dialogue = frame.TTS.Vars["dialogue"]
	}

	return FrameResult{
		FrameID:      frame.ID,
		Dialogue:     dialogue,
		Image:        imageAsset,
		Audio:        audioAsset,
		TemplateUsed: frame.Image.Template,
	}, failures, nil
}

func (g *Generator) generateImageAsset(ctx context.Context, task *AssetTask, frame sdl.Frame, template sdl.ImageTemplate, frameDir string, useCached bool) (AssetResult, error) {
	model := g.config.Image.DefaultModel

	rendered, err := sdl.RenderParts(template.Parts, frame.Image.Vars)
	if err != nil {
		return AssetResult{}, g.failTask(task, services.Wrap(services.ErrGeneration, "generate", "render image template", template.ID, err))
	}

	cacheDir := g.config.Output.Cache.Images
	hash := ImageCacheHash(rendered, model.Model)
	cachePath := filepath.Join(cacheDir, fmt.Sprintf("image_%s.png", hash))

	task.Hash = hash
	task.Cached = useCached && fileExists(cachePath)
	g.markStarted(task)

	if !task.Cached {
		err = g.withBackendSlot(ctx, func() error {
			return g.retry.Do(ctx, g.logger, "image generation", func() error {
				attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
				defer cancel()

				data, err := g.images.GenerateImage(attemptCtx, ImageRequest{Model: model.Model, Parts: rendered})
				if err != nil {
					return err
				}
				if err := os.MkdirAll(cacheDir, 0o755); err != nil {
					return err
				}
				return os.WriteFile(cachePath, data, 0o644)
			})
		})
		if err != nil {
			return AssetResult{}, g.failTask(task, err)
		}
	}

	var finalPath, format string
	if g.config.Image.Optimize.Enabled {
		format = "webp"
		finalPath, err = ToWebP(ctx, g.ffmpeg, cachePath, filepath.Join(frameDir, "image.webp"), g.config.Image.Optimize.Quality)
	} else {
		format = "png"
		finalPath = filepath.Join(frameDir, "image.png")
		err = copyFile(cachePath, finalPath)
	}
	if err != nil {
		return AssetResult{}, g.failTask(task, err)
	}

	g.markComplete(task, finalPath)
	return AssetResult{Path: outputRelPath(finalPath, frameDir), Hash: hash, Format: format}, nil
}

func (g *Generator) generateAudioAsset(ctx context.Context, task *AssetTask, frame sdl.Frame, frameDir string, useCached bool) (AssetResult, error) {
	model := g.config.TTS.DefaultModel

	template, ok := g.graph.Assets.TTSTemplateByID(frame.TTS.Template)
	if !ok {
		return AssetResult{}, g.failTask(task, services.Wrap(services.ErrNotFound, "generate", "tts template",
			fmt.Sprintf("tts template not found: %s", frame.TTS.Template), nil))
	}

	voiceID, err := sdl.RenderTemplateString(template.VoiceID, frame.TTS.Vars)
	if err != nil {
		return AssetResult{}, g.failTask(task, services.Wrap(services.ErrGeneration, "generate", "render tts template", template.ID, err))
	}
	prompt, err := sdl.RenderTemplateString(template.Prompt, frame.TTS.Vars)
	if err != nil {
		return AssetResult{}, g.failTask(task, services.Wrap(services.ErrGeneration, "generate", "render tts template", template.ID, err))
	}

	cacheDir := g.config.Output.Cache.Audio
	hash := TTSCacheHash(string(model.Vendor), model.Model, voiceID, prompt)
	cachePath := filepath.Join(cacheDir, fmt.Sprintf("tts_%s.wav", hash))

	task.Hash = hash
	task.Cached = useCached && fileExists(cachePath)
	g.markStarted(task)

	if !task.Cached {
		err = g.withBackendSlot(ctx, func() error {
			return g.retry.Do(ctx, g.logger, "speech generation", func() error {
				attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
				defer cancel()

				pcm, err := g.speech.GenerateSpeech(attemptCtx, SpeechRequest{Model: model.Model, VoiceID: voiceID, Prompt: prompt})
				if err != nil {
					return err
				}
				if err := os.MkdirAll(cacheDir, 0o755); err != nil {
					return err
				}
				return media.WriteWAV(cachePath, pcm, media.DefaultSampleRate, media.DefaultChannels, media.DefaultSampleSize)
			})
		})
		if err != nil {
			return AssetResult{}, g.failTask(task, err)
		}
	}

	wavPath := filepath.Join(frameDir, "tts.wav")
	if err := copyFile(cachePath, wavPath); err != nil {
		return AssetResult{}, g.failTask(task, err)
	}

	finalPath, format := wavPath, "wav"
	if g.config.TTS.Optimize.Enabled {
		format = "opus"
		finalPath, err = OptimizeAudio(ctx, g.ffmpeg, wavPath, filepath.Join(frameDir, "tts.opus"), g.config.TTS.Optimize.Quality)
		if err != nil {
			return AssetResult{}, g.failTask(task, err)
		}
	}

	g.markComplete(task, finalPath)
	return AssetResult{Path: outputRelPath(finalPath, frameDir), Hash: hash, Format: format}, nil
}

// withBackendSlot runs fn holding one of the bounded backend slots,
// honoring the optional rate limiter.
func (g *Generator) withBackendSlot(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return fn()
}

func (g *Generator) markStarted(task *AssetTask) {
	if task.Cached {
		task.Status = StatusCached
		g.notify.assetCached(task)
		return
	}
	task.Status = StatusGenerating
	task.startTime = time.Now()
	g.notify.assetStart(task)
}

func (g *Generator) markComplete(task *AssetTask, outputPath string) {
	task.endTime = time.Now()
	task.Status = StatusComplete
	task.OutputPath = outputPath
	g.notify.assetComplete(task)
}

func (g *Generator) failTask(task *AssetTask, err error) error {
	task.endTime = time.Now()
	task.Status = StatusFailed
	task.Err = err.Error()
	g.notify.assetError(task, err)
	return err
}

// outputRelPath rewrites an absolute asset path relative to the output
// directory root, three levels above the frame directory
// (output/scenes/scene/frame).
func outputRelPath(path, frameDir string) string {
	root := filepath.Dir(filepath.Dir(filepath.Dir(frameDir)))
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
