package refs

import (
	"reflect"
	"strings"
	"testing"

	"storyboard/internal/sdl"
)

func testGraph() *sdl.SceneGraph {
	return &sdl.SceneGraph{
		Characters: []sdl.Character{
			{
				ID:             "hero",
				Name:           "Ada",
				ReferencePhoto: "./refs/ada.png",
				TTS:            &sdl.CharacterTTS{Style: "calm", Voice: "Aoede"},
			},
		},
		Scenes: []sdl.Scene{
			{
				ID:   "intro",
				Name: "Intro",
				Frames: []sdl.Frame{
					{
						SceneID: "intro",
						ID:      "opening",
						Image: sdl.AssetConfig{
							Template: "portrait",
							Vars: map[string]any{
								"subject": "@characters.hero.name",
								"photo":   "@characters.hero.reference_photo",
							},
						},
					},
				},
			},
		},
	}
}

func TestResolveScalarReference(t *testing.T) {
	resolved, err := Resolve(testGraph())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	frame := resolved.Scenes[0].Frames[0]
	if frame.Image.Vars["subject"] != "Ada" {
		t.Fatalf("subject = %v, want Ada", frame.Image.Vars["subject"])
	}
	if frame.Image.Vars["photo"] != "./refs/ada.png" {
		t.Fatalf("photo = %v", frame.Image.Vars["photo"])
	}
}

func TestResolveStructuredReferenceSerializesToJSON(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["speaker"] = "@characters.hero"

	resolved, err := Resolve(graph)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	value, ok := resolved.Scenes[0].Frames[0].Image.Vars["speaker"].(string)
	if !ok {
		t.Fatalf("expected string value, got %T", resolved.Scenes[0].Frames[0].Image.Vars["speaker"])
	}
	if !strings.HasPrefix(value, "{") || !strings.Contains(value, `"name":"Ada"`) {
		t.Fatalf("unexpected serialized character: %s", value)
	}
}

func TestResolveIdempotent(t *testing.T) {
	first, err := Resolve(testGraph())
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := Resolve(first)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("resolution is not idempotent")
	}
}

func TestResolveSelfReference(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["dialogue"] = "Hello there"
	graph.Scenes[0].Frames[0].Image.Vars["caption"] = "@self.dialogue"

	resolved, err := Resolve(graph)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Scenes[0].Frames[0].Image.Vars["caption"] != "Hello there" {
		t.Fatalf("caption = %v", resolved.Scenes[0].Frames[0].Image.Vars["caption"])
	}
}

func TestResolveSelfWithoutContext(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["list"] = []any{"@self.dialogue"}

	_, err := Resolve(graph)
	if err == nil {
		t.Fatal("expected error for @self without context")
	}
	if !strings.Contains(err.Error(), "cannot use @self reference '@self.dialogue' without a context") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveUnderscoreLookup(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["scene_name"] = "@scenes._intro.name"

	resolved, err := Resolve(graph)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Scenes[0].Frames[0].Image.Vars["scene_name"] != "Intro" {
		t.Fatalf("scene_name = %v", resolved.Scenes[0].Frames[0].Image.Vars["scene_name"])
	}
}

func TestResolveCircularReference(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["a"] = "@scenes.intro.frames.opening.image.b"
	graph.Scenes[0].Frames[0].Image.Vars["b"] = "@scenes.intro.frames.opening.image.a"

	_, err := Resolve(graph)
	if err == nil {
		t.Fatal("expected circular reference error")
	}
	if !strings.Contains(err.Error(), "circular reference detected") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveUnknownTarget(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["subject"] = "@characters.ghost.name"

	_, err := Resolve(graph)
	if err == nil {
		t.Fatal("expected error for unknown character")
	}
	if !strings.Contains(err.Error(), "no item with id='ghost'") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveUnknownField(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Frames[0].Image.Vars["subject"] = "@characters.hero.age"

	_, err := Resolve(graph)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "age") {
		t.Fatalf("unexpected error: %v", err)
	}
}
