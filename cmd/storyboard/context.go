package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"storyboard/internal/config"
	"storyboard/internal/generate"
	"storyboard/internal/logging"
	"storyboard/internal/sdl"
	"storyboard/internal/services/gemini"
	"storyboard/internal/services/openaigen"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			LogFile: cfg.Logging.File,
		})
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// imageBackend selects the generation client for the document's image vendor.
func (c *commandContext) imageBackend(vendor sdl.Vendor) (generate.ImageBackend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	switch vendor {
	case sdl.VendorGemini:
		if err := cfg.RequireGeminiKey(); err != nil {
			return nil, err
		}
		return gemini.NewClient(gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			BaseURL:        cfg.Gemini.BaseURL,
			TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
		}), nil
	case sdl.VendorOpenAI:
		if err := cfg.RequireOpenAIKey(); err != nil {
			return nil, err
		}
		return openaigen.NewClient(openaigen.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported image vendor %q", vendor)
	}
}

// speechBackend selects the generation client for the document's TTS vendor.
func (c *commandContext) speechBackend(vendor sdl.Vendor) (generate.SpeechBackend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	switch vendor {
	case sdl.VendorGemini:
		if err := cfg.RequireGeminiKey(); err != nil {
			return nil, err
		}
		return gemini.NewClient(gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			BaseURL:        cfg.Gemini.BaseURL,
			TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
		}), nil
	case sdl.VendorOpenAI:
		if err := cfg.RequireOpenAIKey(); err != nil {
			return nil, err
		}
		return openaigen.NewClient(openaigen.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported tts vendor %q", vendor)
	}
}

// resolveDocumentPaths applies the optional root directory to the input and
// output flags. The document's base path for relative references is always
// the directory holding the input file.
func resolveDocumentPaths(input, output, rootDir string) (inputPath, outputPath, basePath string) {
	if rootDir != "" {
		inputPath = filepath.Join(rootDir, input)
		if output != "" {
			outputPath = filepath.Join(rootDir, output)
		}
	} else {
		inputPath = input
		outputPath = output
	}
	basePath = filepath.Dir(inputPath)
	return inputPath, outputPath, basePath
}

// effectiveOutputBase mirrors the generator's default output location when no
// explicit output flag is given.
func effectiveOutputBase(outputFlag string, graph *sdl.SceneGraph) string {
	if outputFlag != "" {
		return outputFlag
	}
	return filepath.Join(graph.Config.Output.Directory, "scenes")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
