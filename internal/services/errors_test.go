package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	inner := errors.New("connection refused")

	err := Wrap(ErrGeneration, "generate", "image", "scene intro", inner)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "generation error: generate: image: scene intro: connection refused"
	if err.Error() != want {
		t.Fatalf("err = %q, want %q", err.Error(), want)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := Wrap(ErrNotFound, "generate", "scene", "scene not found: intro", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("marker lost: %v", err)
	}
	if err.Error() != "not found: generate: scene: scene not found: intro" {
		t.Fatalf("err = %q", err.Error())
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "", "", "", nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("nil marker must default to ErrGeneration: %v", err)
	}
	if err.Error() != "generation error: service failure" {
		t.Fatalf("err = %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		marker error
		want   bool
	}{
		{ErrLoad, true},
		{ErrParse, true},
		{ErrReference, true},
		{ErrValidation, true},
		{ErrGeneration, false},
		{ErrExternalTool, false},
		{ErrNotFound, false},
	}
	for _, tt := range tests {
		err := fmt.Errorf("%w: detail", tt.marker)
		if got := IsFatal(err); got != tt.want {
			t.Fatalf("IsFatal(%v) = %v, want %v", tt.marker, got, tt.want)
		}
	}
	if IsFatal(nil) {
		t.Fatal("IsFatal(nil) must be false")
	}
}
