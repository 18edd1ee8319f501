package generate

import (
	"context"

	"storyboard/internal/sdl"
)

// ImageRequest is a fully rendered image generation request. Parts is an
// ordered mix of prompt text and reference image paths.
type ImageRequest struct {
	Model string
	Parts []sdl.TemplatePart
}

// ImageBackend produces PNG image bytes for a request. Implementations make
// exactly one attempt per call; retry and timeout policy live with the
// caller.
type ImageBackend interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// SpeechRequest is a fully rendered speech synthesis request.
type SpeechRequest struct {
	Model   string
	VoiceID string
	Prompt  string
}

// SpeechBackend produces raw 16-bit PCM audio for a request.
type SpeechBackend interface {
	GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error)
}
