// Package openaigen implements the image and speech backends on the
// official openai-go SDK. OpenAI image generation takes a single text
// prompt, so templates with reference-image parts cannot be served by this
// vendor.
package openaigen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"storyboard/internal/generate"
	"storyboard/internal/sdl"
)

// Config captures the runtime settings for the OpenAI backends.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client implements both backend interfaces of the generate package.
type Client struct {
	opts []option.RequestOption
}

// NewClient constructs an OpenAI client from the supplied configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{opts: opts}, nil
}

// GenerateImage generates an image from the joined prompt text.
func (c *Client) GenerateImage(ctx context.Context, req generate.ImageRequest) ([]byte, error) {
	for _, part := range req.Parts {
		if part.Type == sdl.PartImage {
			return nil, errors.New("openai image: reference image parts are not supported by this vendor")
		}
	}
	prompt := sdl.JoinPromptParts(req.Parts)
	if prompt == "" {
		return nil, errors.New("openai image: empty prompt")
	}

	client := openai.NewClient(c.opts...)
	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:          openai.ImageModel(req.Model),
		Prompt:         prompt,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("openai image: response contains no image data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai image: decode image data: %w", err)
	}
	return data, nil
}

// GenerateSpeech synthesizes the prompt and returns raw PCM audio.
func (c *Client) GenerateSpeech(ctx context.Context, req generate.SpeechRequest) ([]byte, error) {
	client := openai.NewClient(c.opts...)
	resp, err := client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(req.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(req.VoiceID),
		Input:          req.Prompt,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai speech: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("openai speech: response contains no audio data")
	}
	return pcm, nil
}
