// Package gemini implements the image and speech backends against the
// Gemini generateContent REST API. The client makes exactly one request per
// call; retry policy belongs to the generation orchestrator.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyboard/internal/generate"
	"storyboard/internal/sdl"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultHTTPTimeout = 120 * time.Second
)

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
}

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client calls the Gemini generateContent endpoint for image and speech
// generation. It implements both backend interfaces of the generate
// package.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateImage renders the ordered prompt and reference-image parts into a
// generateContent call and returns the generated image bytes.
func (c *Client) GenerateImage(ctx context.Context, req generate.ImageRequest) ([]byte, error) {
	parts, err := buildImageParts(req.Parts)
	if err != nil {
		return nil, err
	}
	payload := generateContentRequest{
		Contents: []content{{Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	response, err := c.send(ctx, req.Model, payload)
	if err != nil {
		return nil, err
	}
	data, err := firstInlineData(response)
	if err != nil {
		return nil, fmt.Errorf("gemini image: %w", err)
	}
	return data, nil
}

// GenerateSpeech synthesizes the prompt with the named prebuilt voice and
// returns raw PCM audio.
func (c *Client) GenerateSpeech(ctx context.Context, req generate.SpeechRequest) ([]byte, error) {
	payload := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: req.VoiceID},
				},
			},
		},
	}

	response, err := c.send(ctx, req.Model, payload)
	if err != nil {
		return nil, err
	}
	data, err := firstInlineData(response)
	if err != nil {
		return nil, fmt.Errorf("gemini speech: %w", err)
	}
	return data, nil
}

func buildImageParts(templateParts []sdl.TemplatePart) ([]part, error) {
	parts := make([]part, 0, len(templateParts))
	for _, tp := range templateParts {
		switch {
		case tp.Type == sdl.PartPrompt && tp.Content != "":
			parts = append(parts, part{Text: tp.Content})
		case tp.Type == sdl.PartImage && tp.Content != "":
			data, err := os.ReadFile(tp.Content)
			if err != nil {
				return nil, fmt.Errorf("gemini image: read reference: %w", err)
			}
			ext := strings.ToLower(filepath.Ext(tp.Content))
			mimeType, ok := mimeTypes[ext]
			if !ok {
				return nil, fmt.Errorf("gemini image: unsupported image file type: %s", ext)
			}
			parts = append(parts, part{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}})
		}
	}
	if len(parts) == 0 {
		return nil, errors.New("gemini image: request has no content parts")
	}
	return parts, nil
}

func (c *Client) send(ctx context.Context, model string, payload generateContentRequest) (generateContentResponse, error) {
	var response generateContentResponse
	if c.cfg.APIKey == "" {
		return response, errors.New("gemini request: api key required")
	}

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", model+":generateContent")
	if err != nil {
		return response, fmt.Errorf("gemini request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return response, fmt.Errorf("gemini request: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return response, fmt.Errorf("gemini request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response, fmt.Errorf("gemini request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response, fmt.Errorf("gemini request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return response, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, fmt.Errorf("gemini request: decode response: %w", err)
	}
	if response.Error != nil {
		return response, fmt.Errorf("gemini request: api error %s: %s",
			response.Error.Status, strings.TrimSpace(response.Error.Message))
	}
	return response, nil
}

func firstInlineData(response generateContentResponse) ([]byte, error) {
	if len(response.Candidates) == 0 {
		return nil, errors.New("response has no candidates")
	}
	for _, candidate := range response.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline data: %w", err)
			}
			return data, nil
		}
	}
	return nil, errors.New("response contains no inline data")
}
