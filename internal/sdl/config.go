package sdl

import (
	"fmt"
	"strconv"
	"strings"

	"storyboard/internal/services"
)

// Vendor identifies a generative backend provider.
type Vendor string

const (
	VendorGemini Vendor = "gemini"
	VendorOpenAI Vendor = "openai"
)

var imageModels = map[Vendor][]string{
	VendorGemini: {"gemini-3-pro-image-preview", "gemini-2.5-flash-image"},
	VendorOpenAI: {"gpt-image-1", "dall-e-3"},
}

var ttsModels = map[Vendor][]string{
	VendorGemini: {
		"gemini-2.5-flash-preview-tts",
		"gemini-2.5-pro-tts",
		"gemini-2.5-flash-lite-preview-tts",
	},
	VendorOpenAI: {"tts-1", "tts-1-hd", "gpt-4o-mini-tts"},
}

var ttsVoices = map[Vendor][]string{
	VendorGemini: {"Aoede", "Kore", "Fenrir", "Enceladus", "Schedar", "Vindemiatrix"},
	VendorOpenAI: {"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"},
}

// KnownVoice reports whether the voice name belongs to any vendor's fixed
// voice set.
func KnownVoice(voice string) bool {
	for _, voices := range ttsVoices {
		for _, v := range voices {
			if v == voice {
				return true
			}
		}
	}
	return false
}

// KnownImageExtensions lists the image file extensions the system accepts.
var KnownImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"}

// HasKnownImageExtension reports whether the path ends with a supported
// image extension.
func HasKnownImageExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range KnownImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ModelRef names a vendor/model pair for one asset kind.
type ModelRef struct {
	Vendor Vendor `json:"vendor"`
	Model  string `json:"model"`
}

// OutputCacheConfig holds the content-addressed cache directories.
type OutputCacheConfig struct {
	Images string `json:"images"`
	Audio  string `json:"audio"`
}

// OutputConfig holds the output directory layout.
type OutputConfig struct {
	Directory string            `json:"directory"`
	Cache     OutputCacheConfig `json:"cache"`
}

// OptimizeConfig controls post-generation format conversion.
type OptimizeConfig struct {
	Enabled bool `json:"enabled"`
	Quality int  `json:"quality"`
}

// ImageGenerationConfig selects the image model and optimization settings.
type ImageGenerationConfig struct {
	DefaultModel ModelRef       `json:"default_model"`
	Optimize     OptimizeConfig `json:"optimize"`
}

// TTSGenerationConfig selects the speech model and optimization settings.
type TTSGenerationConfig struct {
	DefaultModel ModelRef       `json:"default_model"`
	Optimize     OptimizeConfig `json:"optimize"`
}

// RetryConfig is the retry policy for backend calls.
type RetryConfig struct {
	Enabled      bool `json:"enabled"`
	MaxAttempts  int  `json:"max_attempts"`
	DelaySeconds int  `json:"delay_seconds"`
}

// GenerationConfig bounds concurrency and backend call time.
type GenerationConfig struct {
	MaxConcurrent  int         `json:"max_concurrent"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Retry          RetryConfig `json:"retry"`
}

// MovieConfig controls video assembly from generated scenes.
type MovieConfig struct {
	NoAudioLength  float64 `json:"no_audio_length"`
	OutputFilename string  `json:"output_filename"`
	Resolution     string  `json:"resolution"`
	FPS            int     `json:"fps"`
	VideoCodec     string  `json:"video_codec"`
	VideoQuality   int     `json:"video_quality"`
	AudioCodec     string  `json:"audio_codec"`
	AudioBitrate   string  `json:"audio_bitrate"`
}

// CompositeConfig groups the composite output settings.
type CompositeConfig struct {
	Movie MovieConfig `json:"movie"`
}

// StoryboardConfig is the document-level configuration block. Defaults and
// range constraints are enforced at construction via Validate.
type StoryboardConfig struct {
	Output     OutputConfig          `json:"output"`
	Image      ImageGenerationConfig `json:"image"`
	TTS        TTSGenerationConfig   `json:"tts"`
	Generation GenerationConfig      `json:"generation"`
	Composite  CompositeConfig       `json:"composite"`
}

func (c StoryboardConfig) Field(name string) (any, bool) {
	switch name {
	case "output":
		return c.Output, true
	case "image":
		return c.Image, true
	case "tts":
		return c.TTS, true
	case "generation":
		return c.Generation, true
	case "composite":
		return c.Composite, true
	}
	return nil, false
}

// DefaultConfig returns the storyboard configuration with repository
// defaults applied.
func DefaultConfig() StoryboardConfig {
	return StoryboardConfig{
		Output: OutputConfig{
			Directory: "./output",
			Cache: OutputCacheConfig{
				Images: ".storyboard/generated/images",
				Audio:  ".storyboard/generated/audio",
			},
		},
		Image: ImageGenerationConfig{
			DefaultModel: ModelRef{Vendor: VendorGemini, Model: "gemini-3-pro-image-preview"},
			Optimize:     OptimizeConfig{Enabled: true, Quality: 80},
		},
		TTS: TTSGenerationConfig{
			DefaultModel: ModelRef{Vendor: VendorGemini, Model: "gemini-2.5-flash-preview-tts"},
			Optimize:     OptimizeConfig{Enabled: true, Quality: 8},
		},
		Generation: GenerationConfig{
			MaxConcurrent:  10,
			TimeoutSeconds: 120,
			Retry:          RetryConfig{Enabled: true, MaxAttempts: 3, DelaySeconds: 2},
		},
		Composite: CompositeConfig{
			Movie: MovieConfig{
				NoAudioLength:  5.0,
				OutputFilename: "movie.mp4",
				Resolution:     "1920x1080",
				FPS:            30,
				VideoCodec:     "libx264",
				VideoQuality:   23,
				AudioCodec:     "aac",
				AudioBitrate:   "192k",
			},
		},
	}
}

// Validate enforces the configuration range invariants.
func (c StoryboardConfig) Validate() error {
	if c.Output.Directory == "" {
		return configErr("output.directory cannot be empty")
	}
	if c.Output.Cache.Images == "" || c.Output.Cache.Audio == "" {
		return configErr("output.cache paths cannot be empty")
	}
	if err := validateModelRef("image", c.Image.DefaultModel, imageModels); err != nil {
		return err
	}
	if err := validateModelRef("tts", c.TTS.DefaultModel, ttsModels); err != nil {
		return err
	}
	if q := c.Image.Optimize.Quality; q < 1 || q > 100 {
		return configErr(fmt.Sprintf("image.optimize.quality must be between 1 and 100, got %d", q))
	}
	if q := c.TTS.Optimize.Quality; q < 1 {
		return configErr(fmt.Sprintf("tts.optimize.quality must be at least 1, got %d", q))
	}
	if c.Generation.MaxConcurrent < 1 {
		return configErr(fmt.Sprintf("generation.max_concurrent must be at least 1, got %d", c.Generation.MaxConcurrent))
	}
	if c.Generation.TimeoutSeconds < 1 {
		return configErr(fmt.Sprintf("generation.timeout_seconds must be at least 1, got %d", c.Generation.TimeoutSeconds))
	}
	if c.Generation.Retry.MaxAttempts < 1 {
		return configErr(fmt.Sprintf("generation.retry.max_attempts must be at least 1, got %d", c.Generation.Retry.MaxAttempts))
	}
	if c.Generation.Retry.DelaySeconds < 0 {
		return configErr(fmt.Sprintf("generation.retry.delay_seconds cannot be negative, got %d", c.Generation.Retry.DelaySeconds))
	}
	if err := c.Composite.Movie.validate(); err != nil {
		return err
	}
	return nil
}

func (m MovieConfig) validate() error {
	if m.NoAudioLength <= 0 {
		return configErr(fmt.Sprintf("composite.movie.no_audio_length must be positive, got %g", m.NoAudioLength))
	}
	if _, _, err := ParseResolution(m.Resolution); err != nil {
		return err
	}
	if m.FPS < 1 {
		return configErr(fmt.Sprintf("composite.movie.fps must be at least 1, got %d", m.FPS))
	}
	if m.VideoQuality < 0 || m.VideoQuality > 51 {
		return configErr(fmt.Sprintf("composite.movie.video_quality must be between 0 and 51, got %d", m.VideoQuality))
	}
	return nil
}

// ParseResolution splits a WIDTHxHEIGHT string into its dimensions.
func ParseResolution(resolution string) (int, int, error) {
	parts := strings.Split(resolution, "x")
	if len(parts) != 2 {
		return 0, 0, configErr(fmt.Sprintf("invalid resolution %q, expected WIDTHxHEIGHT", resolution))
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil || width < 1 {
		return 0, 0, configErr(fmt.Sprintf("invalid resolution width in %q", resolution))
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height < 1 {
		return 0, 0, configErr(fmt.Sprintf("invalid resolution height in %q", resolution))
	}
	return width, height, nil
}

func validateModelRef(section string, ref ModelRef, known map[Vendor][]string) error {
	models, ok := known[ref.Vendor]
	if !ok {
		return configErr(fmt.Sprintf("%s.default_model.vendor %q is not supported", section, ref.Vendor))
	}
	for _, m := range models {
		if m == ref.Model {
			return nil
		}
	}
	return configErr(fmt.Sprintf("%s.default_model.model %q is not valid for vendor %q (valid: %s)",
		section, ref.Model, ref.Vendor, strings.Join(known[ref.Vendor], ", ")))
}

func configErr(msg string) error {
	return services.Wrap(services.ErrParse, "config", "", msg, nil)
}
