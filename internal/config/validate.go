package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Backend API keys are checked
// at the point of use because only the document's vendor is required.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json', got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.RateLimitPerSecond < 0 {
		return errors.New("generation.rate_limit_per_second must not be negative")
	}
	return nil
}

// RequireGeminiKey returns an error with setup guidance when no Gemini API key
// is configured.
func (c *Config) RequireGeminiKey() error {
	if c.Gemini.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/storyboard/config.toml"
	}
	return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'storyboard config init')", defaultPath)
}

// RequireOpenAIKey returns an error with setup guidance when no OpenAI API key
// is configured.
func (c *Config) RequireOpenAIKey() error {
	if c.OpenAI.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/storyboard/config.toml"
	}
	return fmt.Errorf("openai.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'storyboard config init')", defaultPath)
}
