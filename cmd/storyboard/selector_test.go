package main

import (
	"strings"
	"testing"

	"storyboard/internal/generate"
	"storyboard/internal/sdl"
)

func selectorTestGraph() *sdl.SceneGraph {
	return &sdl.SceneGraph{
		Scenes: []sdl.Scene{
			{
				ID:   "intro",
				Name: "Intro",
				Frames: []sdl.Frame{
					{ID: "opening", SceneID: "intro"},
					{ID: "closing", SceneID: "intro"},
				},
			},
			{
				ID:   "finale",
				Name: "Finale",
				Frames: []sdl.Frame{
					{ID: "last", SceneID: "finale"},
				},
			},
		},
	}
}

func TestParseUpdateSelector(t *testing.T) {
	graph := selectorTestGraph()

	tests := []struct {
		name     string
		selector string
		sceneID  string
		frameID  string
		image    bool
		audio    bool
	}{
		{name: "frame only", selector: "intro.opening", sceneID: "intro", frameID: "opening", image: true, audio: true},
		{name: "image asset", selector: "intro.closing.image", sceneID: "intro", frameID: "closing", image: true},
		{name: "tts alias", selector: "finale.last.tts", sceneID: "finale", frameID: "last", audio: true},
		{name: "audio asset", selector: "finale.last.audio", sceneID: "finale", frameID: "last", audio: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sceneID, frameID, assetTypes, err := parseUpdateSelector(tt.selector, graph)
			if err != nil {
				t.Fatalf("parseUpdateSelector(%q): %v", tt.selector, err)
			}
			if sceneID != tt.sceneID || frameID != tt.frameID {
				t.Fatalf("resolved %s.%s, want %s.%s", sceneID, frameID, tt.sceneID, tt.frameID)
			}
			if assetTypes[generate.AssetImage] != tt.image {
				t.Fatalf("image selection = %t, want %t", assetTypes[generate.AssetImage], tt.image)
			}
			if assetTypes[generate.AssetAudio] != tt.audio {
				t.Fatalf("audio selection = %t, want %t", assetTypes[generate.AssetAudio], tt.audio)
			}
		})
	}
}

func TestParseUpdateSelectorErrors(t *testing.T) {
	graph := selectorTestGraph()

	tests := []struct {
		name     string
		selector string
		want     string
	}{
		{name: "too few parts", selector: "intro", want: "invalid selector format"},
		{name: "too many parts", selector: "a.b.c.d", want: "invalid selector format"},
		{name: "bad asset type", selector: "intro.opening.video", want: "invalid asset type"},
		{name: "unknown scene", selector: "missing.opening", want: "scene not found"},
		{name: "unknown frame", selector: "intro.missing", want: "frame not found in scene 'intro'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := parseUpdateSelector(tt.selector, graph)
			if err == nil {
				t.Fatalf("expected error for %q", tt.selector)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseUpdateSelectorListsAvailable(t *testing.T) {
	graph := selectorTestGraph()

	_, _, _, err := parseUpdateSelector("missing.opening", graph)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "intro, finale")

	_, _, _, err = parseUpdateSelector("intro.missing", graph)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "opening, closing")
}
