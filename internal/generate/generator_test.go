package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

type fakeImages struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int
	delay    time.Duration
	err      error
}

func (f *fakeImages) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return []byte("png:" + sdl.JoinPromptParts(req.Parts)), nil
}

type fakeSpeech struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSpeech) GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return make([]byte, 4800), nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) record(event string, task *AssetTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s:%s", task.Type, event))
}

func (r *eventRecorder) OnAssetStart(task *AssetTask)            { r.record("start", task) }
func (r *eventRecorder) OnAssetCached(task *AssetTask)           { r.record("cached", task) }
func (r *eventRecorder) OnAssetComplete(task *AssetTask)         { r.record("complete", task) }
func (r *eventRecorder) OnAssetError(task *AssetTask, err error) { r.record("error", task) }
func (r *eventRecorder) OnSceneComplete(sceneID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "scene:"+sceneID)
}

func (r *eventRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func generatorTestConfig(tmp string) sdl.StoryboardConfig {
	return sdl.StoryboardConfig{
		Output: sdl.OutputConfig{
			Directory: filepath.Join(tmp, "out"),
			Cache: sdl.OutputCacheConfig{
				Images: filepath.Join(tmp, "cache", "images"),
				Audio:  filepath.Join(tmp, "cache", "audio"),
			},
		},
		Image: sdl.ImageGenerationConfig{
			DefaultModel: sdl.ModelRef{Vendor: sdl.VendorGemini, Model: "gemini-2.5-flash-image"},
		},
		TTS: sdl.TTSGenerationConfig{
			DefaultModel: sdl.ModelRef{Vendor: sdl.VendorGemini, Model: "gemini-2.5-flash-preview-tts"},
		},
		Generation: sdl.GenerationConfig{
			MaxConcurrent:  4,
			TimeoutSeconds: 5,
			Retry:          sdl.RetryConfig{Enabled: false, MaxAttempts: 1, DelaySeconds: 1},
		},
	}
}

func generatorTestGraph(tmp string, frames []sdl.Frame) *sdl.SceneGraph {
	return &sdl.SceneGraph{
		Assets: sdl.Assets{
			Images: map[string][]sdl.ImageTemplate{
				"people": {
					{
						ID: "portrait",
						Parts: []sdl.TemplatePart{
							{Type: sdl.PartPrompt, Content: "A portrait of"},
							{Type: sdl.PartPrompt, Key: "subject"},
						},
					},
				},
			},
			TTS: map[string][]sdl.TTSTemplate{
				"voices": {
					{ID: "narration", VoiceID: "Aoede", Prompt: "{$dialogue}"},
				},
			},
		},
		Scenes: []sdl.Scene{{ID: "intro", Name: "Intro", Frames: frames}},
		Config: generatorTestConfig(tmp),
	}
}

func speakingFrame(id, subject, dialogue string) sdl.Frame {
	return sdl.Frame{
		SceneID: "intro",
		ID:      id,
		Image:   sdl.AssetConfig{Template: "portrait", Vars: map[string]any{"subject": subject}},
		TTS:     &sdl.AssetConfig{Template: "narration", Vars: map[string]any{"dialogue": dialogue}},
	}
}

func silentFrame(id, subject string) sdl.Frame {
	return sdl.Frame{
		SceneID: "intro",
		ID:      id,
		Image:   sdl.AssetConfig{Template: "portrait", Vars: map[string]any{"subject": subject}},
	}
}

func TestGenerateSceneWritesAssets(t *testing.T) {
	tmp := t.TempDir()
	graph := generatorTestGraph(tmp, []sdl.Frame{speakingFrame("opening", "Ada", "Hello there")})
	images := &fakeImages{}
	speech := &fakeSpeech{}
	outputBase := filepath.Join(tmp, "out", "scenes")

	gen := New(graph, images, speech, WithLogger(discardLogger()))
	result, err := gen.GenerateScene(context.Background(), "intro", outputBase)
	if err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected failures: %+v", result.FailedAssets)
	}
	if len(result.Frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(result.Frames))
	}

	frame := result.Frames[0]
	if frame.FrameID != "opening" || frame.TemplateUsed != "portrait" {
		t.Fatalf("unexpected frame result: %+v", frame)
	}
	if frame.Dialogue != "Hello there" {
		t.Fatalf("dialogue = %v", frame.Dialogue)
	}
	if frame.Image.Path != filepath.Join("scenes", "intro", "opening", "image.png") {
		t.Fatalf("image path = %s", frame.Image.Path)
	}
	if frame.Image.Format != "png" || len(frame.Image.Hash) != 16 {
		t.Fatalf("unexpected image asset: %+v", frame.Image)
	}
	if frame.Audio == nil || frame.Audio.Format != "wav" {
		t.Fatalf("unexpected audio asset: %+v", frame.Audio)
	}

	imageData, err := os.ReadFile(filepath.Join(outputBase, "intro", "opening", "image.png"))
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !strings.HasPrefix(string(imageData), "png:A portrait of Ada") {
		t.Fatalf("image content = %q", imageData)
	}
	wav, err := os.ReadFile(filepath.Join(outputBase, "intro", "opening", "tts.wav"))
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(wav) != 44+4800 || string(wav[0:4]) != "RIFF" {
		t.Fatalf("unexpected wav output: %d bytes", len(wav))
	}

	cacheEntry := filepath.Join(tmp, "cache", "images", "image_"+frame.Image.Hash+".png")
	if _, err := os.Stat(cacheEntry); err != nil {
		t.Fatalf("cache entry missing: %v", err)
	}
}

func TestGenerateSceneServesFromCache(t *testing.T) {
	tmp := t.TempDir()
	frames := []sdl.Frame{speakingFrame("opening", "Ada", "Hello there")}
	outputBase := filepath.Join(tmp, "out", "scenes")

	first := New(generatorTestGraph(tmp, frames), &fakeImages{}, &fakeSpeech{}, WithLogger(discardLogger()))
	if _, err := first.GenerateScene(context.Background(), "intro", outputBase); err != nil {
		t.Fatalf("first run: %v", err)
	}

	images := &fakeImages{}
	speech := &fakeSpeech{}
	recorder := &eventRecorder{}
	second := New(generatorTestGraph(tmp, frames), images, speech,
		WithLogger(discardLogger()), WithCallback(recorder))
	result, err := second.GenerateScene(context.Background(), "intro", outputBase)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if images.calls != 0 || speech.calls != 0 {
		t.Fatalf("cached run hit backends: images=%d speech=%d", images.calls, speech.calls)
	}
	if len(result.Frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(result.Frames))
	}
	if got := recorder.count("image:cached"); got != 1 {
		t.Fatalf("image cached events = %d, want 1", got)
	}
	if got := recorder.count("audio:cached"); got != 1 {
		t.Fatalf("audio cached events = %d, want 1", got)
	}
}

func TestGenerateScenesBoundsConcurrency(t *testing.T) {
	tmp := t.TempDir()
	var frames []sdl.Frame
	for i := 0; i < 6; i++ {
		frames = append(frames, silentFrame(fmt.Sprintf("frame%d", i), fmt.Sprintf("subject %d", i)))
	}
	graph := generatorTestGraph(tmp, frames)
	graph.Config.Generation.MaxConcurrent = 2
	images := &fakeImages{delay: 20 * time.Millisecond}

	gen := New(graph, images, nil, WithLogger(discardLogger()))
	results := gen.GenerateScenes(context.Background(), []string{"intro"}, filepath.Join(tmp, "out", "scenes"))

	if len(results) != 1 || results[0].Failed() {
		t.Fatalf("unexpected results: %+v", results)
	}
	if images.calls != 6 {
		t.Fatalf("backend calls = %d, want 6", images.calls)
	}
	if images.peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", images.peak)
	}
}

func TestImageFailureDropsFrame(t *testing.T) {
	tmp := t.TempDir()
	graph := generatorTestGraph(tmp, []sdl.Frame{speakingFrame("opening", "Ada", "Hello")})
	images := &fakeImages{err: errors.New("model overloaded")}
	recorder := &eventRecorder{}

	gen := New(graph, images, &fakeSpeech{}, WithLogger(discardLogger()), WithCallback(recorder))
	result, err := gen.GenerateScene(context.Background(), "intro", filepath.Join(tmp, "out", "scenes"))
	if err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}

	if len(result.Frames) != 0 {
		t.Fatalf("failed frame must be dropped, got %d frames", len(result.Frames))
	}
	if len(result.FailedAssets) != 1 {
		t.Fatalf("failed assets = %d, want 1", len(result.FailedAssets))
	}
	task := result.FailedAssets[0]
	if task.Type != AssetImage || task.Status != StatusFailed {
		t.Fatalf("unexpected failed task: %+v", task)
	}
	if !strings.Contains(task.Err, "model overloaded") {
		t.Fatalf("task error = %q", task.Err)
	}
	if got := recorder.count("image:error"); got != 1 {
		t.Fatalf("image error events = %d, want 1", got)
	}
}

func TestAudioFailureKeepsFrame(t *testing.T) {
	tmp := t.TempDir()
	graph := generatorTestGraph(tmp, []sdl.Frame{speakingFrame("opening", "Ada", "Hello")})
	speech := &fakeSpeech{err: errors.New("voice unavailable")}

	gen := New(graph, &fakeImages{}, speech, WithLogger(discardLogger()))
	result, err := gen.GenerateScene(context.Background(), "intro", filepath.Join(tmp, "out", "scenes"))
	if err != nil {
		t.Fatalf("GenerateScene: %v", err)
	}

	if len(result.Frames) != 1 {
		t.Fatalf("frame with failed audio must be kept, got %d frames", len(result.Frames))
	}
	if result.Frames[0].Audio != nil {
		t.Fatalf("audio asset must be nil after failure")
	}
	if len(result.FailedAssets) != 1 || result.FailedAssets[0].Type != AssetAudio {
		t.Fatalf("unexpected failed assets: %+v", result.FailedAssets)
	}
}

func TestGenerateSceneUnknownScene(t *testing.T) {
	tmp := t.TempDir()
	graph := generatorTestGraph(tmp, nil)

	gen := New(graph, &fakeImages{}, nil, WithLogger(discardLogger()))
	_, err := gen.GenerateScene(context.Background(), "missing", filepath.Join(tmp, "out", "scenes"))
	if err == nil {
		t.Fatal("expected error for unknown scene")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "scene not found: missing") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateFrameSelectiveImageOnly(t *testing.T) {
	tmp := t.TempDir()
	graph := generatorTestGraph(tmp, []sdl.Frame{speakingFrame("opening", "Ada", "Hello")})
	images := &fakeImages{}
	speech := &fakeSpeech{}
	sceneDir := filepath.Join(tmp, "out", "scenes", "intro")

	gen := New(graph, images, speech, WithLogger(discardLogger()))
	result, failures, err := gen.GenerateFrameSelective(context.Background(), "intro", "opening",
		sceneDir, map[AssetType]bool{AssetImage: true}, true)
	if err != nil {
		t.Fatalf("GenerateFrameSelective: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if speech.calls != 0 {
		t.Fatalf("speech backend called %d times for image-only update", speech.calls)
	}
	if images.calls != 1 {
		t.Fatalf("image backend calls = %d, want 1", images.calls)
	}
	if result.Audio != nil {
		t.Fatalf("image-only update must not produce audio")
	}
	if _, err := os.Stat(filepath.Join(sceneDir, "opening", "image.png")); err != nil {
		t.Fatalf("image missing: %v", err)
	}
}

func TestGenerateFrameSelectiveAudioWithoutTTS(t *testing.T) {
	tmp := t.TempDir()
	graph := generatorTestGraph(tmp, []sdl.Frame{silentFrame("opening", "Ada")})

	gen := New(graph, &fakeImages{}, nil, WithLogger(discardLogger()))
	_, _, err := gen.GenerateFrameSelective(context.Background(), "intro", "opening",
		filepath.Join(tmp, "out", "scenes", "intro"), map[AssetType]bool{AssetAudio: true}, true)
	if err == nil {
		t.Fatal("expected error for audio update without TTS config")
	}
	if !strings.Contains(err.Error(), "has no TTS configuration") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateFrameSelectiveBypassesCache(t *testing.T) {
	tmp := t.TempDir()
	frames := []sdl.Frame{silentFrame("opening", "Ada")}
	sceneDir := filepath.Join(tmp, "out", "scenes", "intro")

	first := New(generatorTestGraph(tmp, frames), &fakeImages{}, nil, WithLogger(discardLogger()))
	if _, _, err := first.GenerateFrameSelective(context.Background(), "intro", "opening",
		sceneDir, map[AssetType]bool{AssetImage: true}, true); err != nil {
		t.Fatalf("first run: %v", err)
	}

	images := &fakeImages{}
	second := New(generatorTestGraph(tmp, frames), images, nil, WithLogger(discardLogger()))
	if _, _, err := second.GenerateFrameSelective(context.Background(), "intro", "opening",
		sceneDir, map[AssetType]bool{AssetImage: true}, false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if images.calls != 1 {
		t.Fatalf("useCached=false must regenerate, backend calls = %d", images.calls)
	}
}
