package load

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"storyboard/internal/refs"
	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

// SceneGraph reads the root manifest at path, loads every side document it
// references, and returns a fully parsed, path-resolved, reference-resolved
// scene graph. basePath anchors relative asset paths; when empty it defaults
// to the manifest's directory.
func SceneGraph(path string, basePath string) (*sdl.SceneGraph, error) {
	manifest, err := readManifest(path)
	if err != nil {
		return nil, err
	}

	docBase := filepath.Dir(path)
	doc, err := mergeDocuments(manifest, docBase)
	if err != nil {
		return nil, err
	}

	if basePath == "" {
		basePath = docBase
	}

	graph, err := parseSceneGraph(doc, basePath)
	if err != nil {
		return nil, err
	}

	graph, err = resolveFilePaths(graph)
	if err != nil {
		return nil, err
	}

	return refs.Resolve(graph)
}

func readManifest(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "load", "read", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrLoad, "load", "parse yaml", path, err)
	}
	return doc, nil
}

// readMappingNode reads a side document as a yaml mapping node so the
// document's key order survives normalization. Frame and scene order is
// semantically significant downstream.
func readMappingNode(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrLoad, "load", "read", path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, services.Wrap(services.ErrLoad, "load", "parse yaml", path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, services.Wrap(services.ErrLoad, "load", "", fmt.Sprintf("empty document: %s", path), nil)
	}
	node := root.Content[0]
	if node.Kind != yaml.MappingNode {
		return nil, services.Wrap(services.ErrLoad, "load", "", fmt.Sprintf("top level of %s must be a mapping", path), nil)
	}
	return node, nil
}

// mergeDocuments loads every referenced side file and merges the normalized
// structures into a single document ready for schema parsing.
func mergeDocuments(manifest map[string]any, basePath string) (map[string]any, error) {
	doc := make(map[string]any)

	if ref, ok := manifest["characters"].(string); ok {
		node, err := readMappingNode(filepath.Join(basePath, ref))
		if err != nil {
			return nil, err
		}
		characters, err := tagMapToArray(node, "key")
		if err != nil {
			return nil, err
		}
		doc["characters"] = characters
	}

	assets := make(map[string]any)
	if ref, ok := manifest["image_templates"].(string); ok {
		node, err := readMappingNode(filepath.Join(basePath, ref))
		if err != nil {
			return nil, err
		}
		templates, err := tagMapToArray(node, "key")
		if err != nil {
			return nil, err
		}
		assets["images"] = map[string]any{"templates": templates}
	}
	if ref, ok := manifest["tts_templates"].(string); ok {
		node, err := readMappingNode(filepath.Join(basePath, ref))
		if err != nil {
			return nil, err
		}
		templates, err := tagMapToArray(node, "key")
		if err != nil {
			return nil, err
		}
		assets["tts"] = map[string]any{"templates": templates}
	}
	if len(assets) > 0 {
		doc["assets"] = assets
	}

	if ref, ok := manifest["scenes"].(string); ok {
		node, err := readMappingNode(filepath.Join(basePath, ref))
		if err != nil {
			return nil, err
		}
		scenes, err := scenesMapToArray(node)
		if err != nil {
			return nil, err
		}
		doc["scenes"] = scenes
	}

	if config, ok := manifest["config"]; ok {
		doc["config"] = config
	}

	return doc, nil
}

// tagMapToArray converts a mapping keyed by _name into an array of entities
// with an id field, preserving document order. Every key must carry the
// underscore prefix; absence is a hard load error.
func tagMapToArray(node *yaml.Node, kind string) ([]any, error) {
	result := make([]any, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		id, err := stripTagPrefix(keyNode.Value, kind)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := valueNode.Decode(&fields); err != nil {
			return nil, services.Wrap(services.ErrLoad, "load", "",
				fmt.Sprintf("entry '%s' must be a mapping", keyNode.Value), err)
		}
		entry := map[string]any{"id": id}
		for field, value := range fields {
			entry[field] = value
		}
		result = append(result, entry)
	}
	return result, nil
}

// scenesMapToArray handles the doubly nested scene-map/frame-map structure,
// injecting each frame's scene_id from its parent and preserving the
// document order of both scenes and frames.
func scenesMapToArray(node *yaml.Node) ([]any, error) {
	result := make([]any, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, sceneNode := node.Content[i], node.Content[i+1]

		sceneID, err := stripTagPrefix(keyNode.Value, "scene key")
		if err != nil {
			return nil, err
		}
		if sceneNode.Kind != yaml.MappingNode {
			return nil, services.Wrap(services.ErrLoad, "load", "",
				fmt.Sprintf("scene '%s' must be a mapping", sceneID), nil)
		}

		var name any
		var frames []any
		for j := 0; j+1 < len(sceneNode.Content); j += 2 {
			fieldNode, valueNode := sceneNode.Content[j], sceneNode.Content[j+1]
			switch fieldNode.Value {
			case "name":
				name = valueNode.Value
			case "frames":
				if valueNode.Kind != yaml.MappingNode {
					return nil, services.Wrap(services.ErrLoad, "load", "",
						fmt.Sprintf("frames of scene '%s' must be a mapping", sceneID), nil)
				}
				frames, err = framesMapToArray(valueNode, sceneID)
				if err != nil {
					return nil, err
				}
			}
		}

		result = append(result, map[string]any{
			"id":     sceneID,
			"name":   name,
			"frames": frames,
		})
	}
	return result, nil
}

func framesMapToArray(node *yaml.Node, sceneID string) ([]any, error) {
	frames := make([]any, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		frameID, err := stripTagPrefix(keyNode.Value, "frame key")
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := valueNode.Decode(&fields); err != nil {
			return nil, services.Wrap(services.ErrLoad, "load", "",
				fmt.Sprintf("frame '%s' in scene '%s' must be a mapping", frameID, sceneID), err)
		}
		frame := map[string]any{"id": frameID, "scene_id": sceneID}
		for field, value := range fields {
			frame[field] = value
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func stripTagPrefix(key, kind string) (string, error) {
	if len(key) < 2 || key[0] != '_' {
		return "", services.Wrap(services.ErrLoad, "load", "",
			fmt.Sprintf("expected _ prefix on %s: %s", kind, key), nil)
	}
	return key[1:], nil
}
