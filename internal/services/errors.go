package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLoad marks document loading failures: missing files, unreadable
	// YAML, or a violated key-prefix convention.
	ErrLoad = errors.New("load error")
	// ErrParse marks schema-level failures at construction time.
	ErrParse = errors.New("parse error")
	// ErrReference marks unresolvable, context-less, or circular references.
	ErrReference = errors.New("reference error")
	// ErrValidation marks aggregated post-resolution consistency failures.
	ErrValidation = errors.New("validation error")
	// ErrGeneration marks per-asset backend failures after retries.
	ErrGeneration = errors.New("generation error")
	// ErrExternalTool marks failures of external binaries such as ffmpeg.
	ErrExternalTool = errors.New("external tool error")
	// ErrNotFound marks lookups of scenes, frames, or templates that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrGeneration
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error must abort the pipeline before any
// generation work starts. Generation and external-tool errors are handled at
// the asset or stage boundary instead.
func IsFatal(err error) bool {
	return errors.Is(err, ErrLoad) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrReference) ||
		errors.Is(err, ErrValidation)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
