package sdl

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"storyboard/internal/services"
)

// Entity is implemented by every typed node the reference resolver can
// navigate by field name. The second return reports whether the field exists
// on the entity's schema; a nil value with ok=true means the field is present
// but unset.
type Entity interface {
	Field(name string) (any, bool)
}

// PartType distinguishes prompt text from image references in a template.
type PartType string

const (
	PartPrompt PartType = "prompt"
	PartImage  PartType = "image"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TemplatePart is one ordered segment of an image template: literal prompt
// text, a literal image path, or a named placeholder of either kind. A part
// with a Key is a placeholder and may have empty content; a part without a
// Key must carry literal content.
type TemplatePart struct {
	Type    PartType `json:"type"`
	Content string   `json:"content"`
	Key     string   `json:"key,omitempty"`
}

// Validate enforces the content/key invariant and the key character set.
func (p TemplatePart) Validate() error {
	if p.Type != PartPrompt && p.Type != PartImage {
		return services.Wrap(services.ErrParse, "template part", "", fmt.Sprintf("unknown part type %q", p.Type), nil)
	}
	if p.Key != "" && !keyPattern.MatchString(p.Key) {
		return services.Wrap(services.ErrParse, "template part", "",
			fmt.Sprintf("key must contain only alphanumeric characters, hyphens, and underscores: %q", p.Key), nil)
	}
	if p.Key == "" && strings.TrimSpace(p.Content) == "" {
		return services.Wrap(services.ErrParse, "template part", "", "content cannot be empty when key is not provided", nil)
	}
	return nil
}

// CharacterTTS holds the per-character voice configuration.
type CharacterTTS struct {
	Style string `json:"style"`
	Voice string `json:"voice"`
}

func (c *CharacterTTS) Field(name string) (any, bool) {
	switch name {
	case "style":
		return c.Style, true
	case "voice":
		return c.Voice, true
	}
	return nil, false
}

// Character describes one persona referenced by scenes and templates.
type Character struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ReferencePhoto string        `json:"reference_photo"`
	TTS            *CharacterTTS `json:"tts,omitempty"`
}

func (c Character) Field(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "reference_photo":
		return c.ReferencePhoto, true
	case "tts":
		if c.TTS == nil {
			return nil, true
		}
		return c.TTS, true
	}
	return nil, false
}

// CharacterFields lists the schema fields of Character, used by the validator
// when reporting invalid attribute references.
func CharacterFields() []string {
	return []string{"id", "name", "reference_photo", "tts"}
}

// ImageTemplate is a non-empty ordered sequence of template parts. Order is
// semantically significant: it becomes generation-call ordering and the cache
// hash input order.
type ImageTemplate struct {
	ID    string         `json:"id"`
	Parts []TemplatePart `json:"parts"`
}

func (t ImageTemplate) Field(name string) (any, bool) {
	switch name {
	case "id":
		return t.ID, true
	case "parts":
		return listOf(t.Parts), true
	}
	return nil, false
}

// Variables returns the set of placeholder keys required by the template.
func (t ImageTemplate) Variables() map[string]struct{} {
	vars := make(map[string]struct{})
	for _, part := range t.Parts {
		if part.Key != "" {
			vars[part.Key] = struct{}{}
		}
	}
	return vars
}

// TTSTemplate holds the voice and prompt template strings for speech
// synthesis. Both fields may contain {$var} placeholders.
type TTSTemplate struct {
	ID      string `json:"id"`
	VoiceID string `json:"voice_id"`
	Prompt  string `json:"prompt"`
}

func (t TTSTemplate) Field(name string) (any, bool) {
	switch name {
	case "id":
		return t.ID, true
	case "voice_id":
		return t.VoiceID, true
	case "prompt":
		return t.Prompt, true
	}
	return nil, false
}

// Assets groups templates by category.
type Assets struct {
	Images map[string][]ImageTemplate `json:"images"`
	TTS    map[string][]TTSTemplate   `json:"tts"`
}

func (a Assets) Field(name string) (any, bool) {
	switch name {
	case "images":
		m := make(map[string]any, len(a.Images))
		for category, templates := range a.Images {
			m[category] = listOf(templates)
		}
		return m, true
	case "tts":
		m := make(map[string]any, len(a.TTS))
		for category, templates := range a.TTS {
			m[category] = listOf(templates)
		}
		return m, true
	}
	return nil, false
}

// ImageTemplateByID finds a template by id across all categories.
func (a Assets) ImageTemplateByID(id string) (ImageTemplate, bool) {
	for _, templates := range a.Images {
		for _, t := range templates {
			if t.ID == id {
				return t, true
			}
		}
	}
	return ImageTemplate{}, false
}

// TTSTemplateByID finds a TTS template by id across all categories.
func (a Assets) TTSTemplateByID(id string) (TTSTemplate, bool) {
	for _, templates := range a.TTS {
		for _, t := range templates {
			if t.ID == id {
				return t, true
			}
		}
	}
	return TTSTemplate{}, false
}

// AssetConfig is the extensible key-value bag a frame supplies to a template:
// a reserved "template" key plus an open map of named variables. It
// serializes flat, exactly as written in the source document.
type AssetConfig struct {
	Template string
	Vars     map[string]any
}

func (c AssetConfig) Field(name string) (any, bool) {
	if name == "template" {
		return c.Template, true
	}
	value, ok := c.Vars[name]
	return value, ok
}

// MarshalJSON flattens the config into a single object with the reserved
// template key alongside the variables.
func (c AssetConfig) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Vars)+1)
	for key, value := range c.Vars {
		flat[key] = value
	}
	flat["template"] = c.Template
	return json.Marshal(flat)
}

// UnmarshalJSON splits the flat object back into the template id and the
// open variable map.
func (c *AssetConfig) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	c.Vars = make(map[string]any, len(flat))
	for key, value := range flat {
		if key == "template" {
			if s, ok := value.(string); ok {
				c.Template = s
				continue
			}
			return fmt.Errorf("template must be a string, got %T", value)
		}
		c.Vars[key] = value
	}
	return nil
}

// Frame is the atomic unit of generation: one image (required) and one audio
// track (optional). SceneID must equal the id of the enclosing scene.
type Frame struct {
	SceneID string       `json:"scene_id"`
	ID      string       `json:"id"`
	Image   AssetConfig  `json:"image"`
	TTS     *AssetConfig `json:"tts,omitempty"`
}

func (f Frame) Field(name string) (any, bool) {
	switch name {
	case "scene_id":
		return f.SceneID, true
	case "id":
		return f.ID, true
	case "image":
		return f.Image, true
	case "tts":
		if f.TTS == nil {
			return nil, true
		}
		return *f.TTS, true
	}
	return nil, false
}

// Scene is an ordered list of frames with an id and display name.
type Scene struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Frames []Frame `json:"frames"`
}

func (s Scene) Field(name string) (any, bool) {
	switch name {
	case "id":
		return s.ID, true
	case "name":
		return s.Name, true
	case "frames":
		return listOf(s.Frames), true
	}
	return nil, false
}

// FrameByID finds a frame in the scene.
func (s Scene) FrameByID(id string) (Frame, bool) {
	for _, f := range s.Frames {
		if f.ID == id {
			return f, true
		}
	}
	return Frame{}, false
}

// SceneGraph is the root aggregate the resolver, validator, and generator
// operate over. BasePath anchors every relative file reference in the
// document. The graph is rebuilt, never mutated, at each resolution phase.
type SceneGraph struct {
	Characters []Character      `json:"characters"`
	Assets     Assets           `json:"assets"`
	Scenes     []Scene          `json:"scenes"`
	Config     StoryboardConfig `json:"config"`
	BasePath   string           `json:"base_path"`
}

func (g *SceneGraph) Field(name string) (any, bool) {
	switch name {
	case "characters":
		return listOf(g.Characters), true
	case "assets":
		return g.Assets, true
	case "scenes":
		return listOf(g.Scenes), true
	case "config":
		return g.Config, true
	case "base_path":
		return g.BasePath, true
	}
	return nil, false
}

// CharacterByID finds a character in the graph.
func (g *SceneGraph) CharacterByID(id string) (Character, bool) {
	for _, c := range g.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

// SceneByID finds a scene in the graph.
func (g *SceneGraph) SceneByID(id string) (Scene, bool) {
	for _, s := range g.Scenes {
		if s.ID == id {
			return s, true
		}
	}
	return Scene{}, false
}

// Dump converts the graph to a generic tree of maps, lists, and scalars for
// the reference resolution pass.
func (g *SceneGraph) Dump() (map[string]any, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("dump scene graph: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("dump scene graph: %w", err)
	}
	return tree, nil
}

// GraphFromTree rebuilds a typed scene graph from a generic tree produced by
// Dump after resolution rewrote its values.
func GraphFromTree(tree map[string]any) (*SceneGraph, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("rebuild scene graph: %w", err)
	}
	var graph SceneGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("rebuild scene graph: %w", err)
	}
	return &graph, nil
}

func listOf[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
