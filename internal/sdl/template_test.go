package sdl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExpandPromptString(t *testing.T) {
	parts, err := ExpandPromptString("A portrait of {$name} standing near [image ./refs/tree.png] at dusk")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	want := []TemplatePart{
		{Type: PartPrompt, Content: "A portrait of "},
		{Type: PartPrompt, Key: "name"},
		{Type: PartPrompt, Content: " standing near "},
		{Type: PartImage, Content: "./refs/tree.png"},
		{Type: PartPrompt, Content: " at dusk"},
	}
	if len(parts) != len(want) {
		t.Fatalf("expected %d parts, got %d: %#v", len(want), len(parts), parts)
	}
	for i, part := range parts {
		if part != want[i] {
			t.Fatalf("part %d = %#v, want %#v", i, part, want[i])
		}
	}
}

func TestExpandPromptStringImageVariable(t *testing.T) {
	parts, err := ExpandPromptString("[image $photo] in the style of {$style}")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if parts[0].Type != PartImage || parts[0].Key != "photo" || parts[0].Content != "" {
		t.Fatalf("expected image placeholder part, got %#v", parts[0])
	}
	if parts[len(parts)-1].Key != "style" {
		t.Fatalf("expected trailing style placeholder, got %#v", parts[len(parts)-1])
	}
}

func TestExpandPromptStringPlainText(t *testing.T) {
	parts, err := ExpandPromptString("  just a prompt  ")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(parts) != 1 || parts[0].Content != "just a prompt" {
		t.Fatalf("unexpected parts: %#v", parts)
	}
}

func TestRenderParts(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "ref.png")
	if err := os.WriteFile(photo, []byte("png"), 0o644); err != nil {
		t.Fatalf("write ref: %v", err)
	}

	parts := []TemplatePart{
		{Type: PartPrompt, Content: "A scene with"},
		{Type: PartPrompt, Key: "subject"},
		{Type: PartImage, Key: "photo"},
	}
	rendered, err := RenderParts(parts, map[string]any{"subject": "a fox", "photo": photo})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rendered[1].Content != "a fox" || rendered[1].Key != "" {
		t.Fatalf("unexpected rendered part: %#v", rendered[1])
	}
	if rendered[2].Content != photo {
		t.Fatalf("expected rendered image path %s, got %#v", photo, rendered[2])
	}
}

func TestRenderPartsMissingVariable(t *testing.T) {
	parts := []TemplatePart{{Type: PartPrompt, Key: "subject"}}
	_, err := RenderParts(parts, map[string]any{"a": 1, "b": 2})
	if err == nil {
		t.Fatal("expected missing variable error")
	}
	if !strings.Contains(err.Error(), "missing required template variable: 'subject'") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "['a', 'b']") {
		t.Fatalf("expected sorted available keys, got: %v", err)
	}
}

func TestRenderPartsMissingImageFile(t *testing.T) {
	parts := []TemplatePart{{Type: PartImage, Content: "/nonexistent/photo.png"}}
	_, err := RenderParts(parts, nil)
	if err == nil {
		t.Fatal("expected error for missing reference image")
	}
	if !strings.Contains(err.Error(), "reference image not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJoinPromptParts(t *testing.T) {
	tests := []struct {
		name  string
		parts []TemplatePart
		want  string
	}{
		{
			name: "plain words",
			parts: []TemplatePart{
				{Type: PartPrompt, Content: "A fox"},
				{Type: PartPrompt, Content: "in the snow"},
			},
			want: "A fox in the snow",
		},
		{
			name: "no space before punctuation",
			parts: []TemplatePart{
				{Type: PartPrompt, Content: "A fox"},
				{Type: PartPrompt, Content: ", alert"},
			},
			want: "A fox, alert",
		},
		{
			name: "no space after opening bracket",
			parts: []TemplatePart{
				{Type: PartPrompt, Content: "style ("},
				{Type: PartPrompt, Content: "watercolor)"},
			},
			want: "style (watercolor)",
		},
		{
			name: "existing whitespace wins",
			parts: []TemplatePart{
				{Type: PartPrompt, Content: "A fox "},
				{Type: PartPrompt, Content: "running"},
			},
			want: "A fox running",
		},
		{
			name: "image parts skipped",
			parts: []TemplatePart{
				{Type: PartPrompt, Content: "before"},
				{Type: PartImage, Content: "/tmp/x.png"},
				{Type: PartPrompt, Content: "after"},
			},
			want: "before after",
		},
		{
			name:  "empty",
			parts: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JoinPromptParts(tt.parts)
			if got != tt.want {
				t.Fatalf("JoinPromptParts = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTemplateString(t *testing.T) {
	got, err := RenderTemplateString("Say {$line} as {$speaker.name}", map[string]any{
		"line":    "hello",
		"speaker": `{"name": "Ada", "tts": {"voice": "Aoede"}}`,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Say hello as Ada" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestRenderTemplateStringNestedPath(t *testing.T) {
	got, err := RenderTemplateString("{$speaker.tts.voice}", map[string]any{
		"speaker": `{"name": "Ada", "tts": {"voice": "Aoede"}}`,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Aoede" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestRenderTemplateStringMissing(t *testing.T) {
	_, err := RenderTemplateString("{$speaker.name}", map[string]any{"other": "x"})
	if err == nil {
		t.Fatal("expected missing variable error")
	}
	if !strings.Contains(err.Error(), "speaker.name") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStringifyWholeNumbers(t *testing.T) {
	if got := stringify(float64(30)); got != "30" {
		t.Fatalf("stringify(30.0) = %q, want 30", got)
	}
	if got := stringify(2.5); got != "2.5" {
		t.Fatalf("stringify(2.5) = %q", got)
	}
}

func TestTemplatePartValidate(t *testing.T) {
	tests := []struct {
		name    string
		part    TemplatePart
		wantErr string
	}{
		{name: "literal prompt", part: TemplatePart{Type: PartPrompt, Content: "x"}},
		{name: "keyed image", part: TemplatePart{Type: PartImage, Key: "ref_1"}},
		{name: "bad type", part: TemplatePart{Type: "video", Content: "x"}, wantErr: "unknown part type"},
		{name: "bad key chars", part: TemplatePart{Type: PartPrompt, Key: "a b"}, wantErr: "key must contain only"},
		{name: "empty literal", part: TemplatePart{Type: PartPrompt, Content: "   "}, wantErr: "content cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.part.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %v does not contain %q", err, tt.wantErr)
			}
		})
	}
}
