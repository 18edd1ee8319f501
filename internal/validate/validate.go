package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

// Error carries every validation failure found in a single pass.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("scene graph validation failed:")
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return services.ErrValidation }

// Graph validates a fully resolved scene graph against basePath. A nil
// return means the graph is safe to hand to the generator.
func Graph(graph *sdl.SceneGraph, basePath string) error {
	if basePath == "" {
		basePath = graph.BasePath
	}

	var problems []string
	problems = append(problems, checkCharacters(graph.Characters, basePath)...)
	problems = append(problems, checkImageTemplates(graph.Assets.Images, basePath)...)
	problems = append(problems, checkFrames(graph, basePath)...)

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// looksLikeFilePath reports whether a resolved string value plausibly names
// a file on disk. Entity references, template placeholders, and multiline
// prose are never paths.
func looksLikeFilePath(value string) bool {
	if strings.HasPrefix(value, "@") {
		return false
	}
	if strings.Contains(value, "{") && strings.Contains(value, "}") {
		return false
	}
	if strings.ContainsAny(value, "\n\r") {
		return false
	}
	return strings.Contains(value, "/") || sdl.HasKnownImageExtension(value)
}

func checkFilePath(path, context, basePath, suffix string) []string {
	resolved := resolvePath(path, basePath)
	if suffix == "" {
		suffix = "not found"
	}

	if _, err := os.Stat(resolved); err != nil {
		return []string{fmt.Sprintf("%s %s at '%s'", context, suffix, path)}
	}
	if !sdl.HasKnownImageExtension(resolved) {
		return []string{fmt.Sprintf("%s has invalid extension '%s' (expected one of: %s)",
			context, filepath.Ext(resolved), strings.Join(sdl.KnownImageExtensions, ", "))}
	}
	return nil
}

func collectFilePaths(value any) []string {
	var paths []string
	switch v := value.(type) {
	case string:
		if looksLikeFilePath(v) {
			paths = append(paths, v)
		}
	case []any:
		for _, item := range v {
			paths = append(paths, collectFilePaths(item)...)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			paths = append(paths, collectFilePaths(v[key])...)
		}
	}
	return paths
}

func checkCharacters(characters []sdl.Character, basePath string) []string {
	var problems []string

	for _, character := range characters {
		data := dumpValue(character)
		for _, path := range collectFilePaths(data) {
			context := fmt.Sprintf("Character '%s'", character.ID)
			for field, value := range data {
				if s, ok := value.(string); ok && s == path {
					context = fmt.Sprintf("Character '%s': %s", character.ID, field)
					break
				}
			}
			problems = append(problems, checkFilePath(path, context, basePath, "not found")...)
		}
	}

	return problems
}

func checkImageTemplates(images map[string][]sdl.ImageTemplate, basePath string) []string {
	var problems []string

	categories := make([]string, 0, len(images))
	for category := range images {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, template := range images[category] {
			for _, part := range template.Parts {
				if part.Type == sdl.PartImage && part.Content != "" && part.Key == "" {
					context := fmt.Sprintf("Image template '%s' (category '%s'): reference",
						template.ID, category)
					problems = append(problems, checkFilePath(part.Content, context, basePath, "not found")...)
				}
			}
		}
	}

	return problems
}

func checkFrames(graph *sdl.SceneGraph, basePath string) []string {
	var problems []string

	templates := make(map[string]sdl.ImageTemplate)
	for _, list := range graph.Assets.Images {
		for _, template := range list {
			templates[template.ID] = template
		}
	}
	characters := make(map[string]sdl.Character)
	for _, character := range graph.Characters {
		characters[character.ID] = character
	}

	for _, scene := range graph.Scenes {
		for _, frame := range scene.Frames {
			template, known := templates[frame.Image.Template]
			if !known {
				problems = append(problems, fmt.Sprintf(
					"Frame '%s' in scene '%s': template '%s' not found in assets",
					frame.ID, frame.SceneID, frame.Image.Template))
			} else {
				problems = append(problems, checkTemplateVariables(frame, template, basePath)...)
			}

			if frame.SceneID != scene.ID {
				problems = append(problems, fmt.Sprintf(
					"Frame '%s': scene_id '%s' does not match parent scene id '%s'",
					frame.ID, frame.SceneID, scene.ID))
			}

			problems = append(problems, checkFrameReferences(frame, graph)...)
		}
	}

	return problems
}

func checkTemplateVariables(frame sdl.Frame, template sdl.ImageTemplate, basePath string) []string {
	var problems []string

	var missing []string
	for name := range template.Variables() {
		if _, ok := frame.Image.Vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		problems = append(problems, fmt.Sprintf(
			"Frame '%s': missing required template variables for template '%s': %s",
			frame.ID, template.ID, quoteList(missing)))
	}

	vars := make(map[string]any, len(frame.Image.Vars))
	for key, value := range frame.Image.Vars {
		vars[key] = value
	}
	for _, path := range collectFilePaths(vars) {
		context := fmt.Sprintf("Frame '%s': variable", frame.ID)
		problems = append(problems, checkFilePath(path, context, basePath, "points to non-existent file")...)
	}

	return problems
}

// checkFrameReferences validates any @ references still present in frame
// variables after resolution. On a resolved graph these indicate values the
// resolver could not reach.
func checkFrameReferences(frame sdl.Frame, graph *sdl.SceneGraph) []string {
	var problems []string

	frameData := dumpValue(frame)
	imageData := dumpValue(frame.Image)

	keys := make([]string, 0, len(frame.Image.Vars))
	for key := range frame.Image.Vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := frame.Image.Vars[key].(string)
		if !ok || !strings.HasPrefix(value, "@") {
			continue
		}
		problems = append(problems, checkReferencePath(value, graph, frame.ID, frameData, imageData)...)
	}

	return problems
}

func checkReferencePath(reference string, graph *sdl.SceneGraph, frameID string, parentData, selfData map[string]any) []string {
	path := strings.TrimPrefix(reference, "@")
	if path == "" {
		return []string{fmt.Sprintf("Frame '%s': reference cannot be empty after @", frameID)}
	}

	parts := strings.Split(path, ".")
	section := parts[0]

	switch section {
	case "self":
		if len(parts) >= 2 {
			if _, ok := selfData[parts[1]]; !ok {
				return []string{fmt.Sprintf(
					"Frame '%s': @self reference '%s' - field '%s' not found in self context",
					frameID, reference, parts[1])}
			}
		}
		return nil
	case "parent":
		if len(parts) >= 2 {
			if _, ok := parentData[parts[1]]; !ok {
				return []string{fmt.Sprintf(
					"Frame '%s': @parent reference '%s' - field '%s' not found in parent context",
					frameID, reference, parts[1])}
			}
		}
		return nil
	case "characters":
		return checkCharacterReference(reference, parts, graph, frameID)
	case "assets":
		return checkAssetReference(reference, parts, graph, frameID)
	case "scenes":
		return nil
	default:
		return []string{fmt.Sprintf(
			"Frame '%s': invalid section '%s' in reference '%s' (valid sections: characters, assets, scenes)",
			frameID, section, reference)}
	}
}

func checkCharacterReference(reference string, parts []string, graph *sdl.SceneGraph, frameID string) []string {
	if len(parts) < 2 {
		return []string{fmt.Sprintf(
			"Frame '%s': invalid characters reference '%s' (expected format: @characters.character_id.attribute)",
			frameID, reference)}
	}

	character, ok := graph.CharacterByID(parts[1])
	if !ok {
		return []string{fmt.Sprintf(
			"Frame '%s': character '%s' not found in reference '%s'",
			frameID, parts[1], reference)}
	}

	if len(parts) >= 3 {
		if _, ok := character.Field(parts[2]); !ok {
			return []string{fmt.Sprintf(
				"Frame '%s': invalid attribute '%s' in reference '%s' (valid attributes: %s)",
				frameID, parts[2], reference, strings.Join(sdl.CharacterFields(), ", "))}
		}
	}
	return nil
}

func checkAssetReference(reference string, parts []string, graph *sdl.SceneGraph, frameID string) []string {
	if len(parts) < 2 {
		return []string{fmt.Sprintf(
			"Frame '%s': invalid assets reference '%s' (expected format: @assets.subsection.id or @assets.images.category.template_id)",
			frameID, reference)}
	}

	if parts[1] != "images" {
		return []string{fmt.Sprintf(
			"Frame '%s': invalid assets subsection '%s' in reference '%s' (only 'images' is currently supported)",
			frameID, parts[1], reference)}
	}

	if len(parts) >= 4 {
		category, templateID := parts[2], parts[3]
		templates, ok := graph.Assets.Images[category]
		if !ok {
			return []string{fmt.Sprintf(
				"Frame '%s': image category '%s' not found in reference '%s'",
				frameID, category, reference)}
		}
		found := false
		for _, template := range templates {
			if template.ID == templateID {
				found = true
				break
			}
		}
		if !found {
			return []string{fmt.Sprintf(
				"Frame '%s': template '%s' not found in category '%s' in reference '%s'",
				frameID, templateID, category, reference)}
		}
	}
	return nil
}

func dumpValue(value any) map[string]any {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func resolvePath(path, basePath string) string {
	if filepath.IsAbs(path) {
		return path
	}
	path = strings.TrimPrefix(path, "./")
	return filepath.Join(basePath, path)
}
