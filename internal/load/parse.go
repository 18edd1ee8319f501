package load

import (
	"encoding/json"
	"fmt"
	"strings"

	"storyboard/internal/sdl"
	"storyboard/internal/services"
)

func parseErr(message string) error {
	return services.Wrap(services.ErrParse, "parse", "", message, nil)
}

func requireString(m map[string]any, field, context string) (string, error) {
	value, ok := m[field]
	if !ok {
		return "", parseErr(fmt.Sprintf("%s missing required field '%s'", context, field))
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", parseErr(fmt.Sprintf("%s field '%s' must be a non-empty string", context, field))
	}
	return s, nil
}

func asMap(value any, context string) (map[string]any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, parseErr(fmt.Sprintf("%s must be a mapping", context))
	}
	return m, nil
}

func parseCharacter(data map[string]any) (sdl.Character, error) {
	id, err := requireString(data, "id", "character")
	if err != nil {
		return sdl.Character{}, err
	}
	context := fmt.Sprintf("character '%s'", id)

	name, err := requireString(data, "name", context)
	if err != nil {
		return sdl.Character{}, err
	}
	photo, err := requireString(data, "reference_photo", context)
	if err != nil {
		return sdl.Character{}, err
	}

	character := sdl.Character{ID: id, Name: name, ReferencePhoto: photo}

	if raw, ok := data["tts"]; ok {
		ttsData, err := asMap(raw, context+" tts")
		if err != nil {
			return sdl.Character{}, err
		}
		style, err := requireString(ttsData, "style", context+" tts")
		if err != nil {
			return sdl.Character{}, err
		}
		voice, err := requireString(ttsData, "voice", context+" tts")
		if err != nil {
			return sdl.Character{}, err
		}
		character.TTS = &sdl.CharacterTTS{Style: style, Voice: voice}
	}

	return character, nil
}

func parseImageTemplate(data map[string]any) (sdl.ImageTemplate, error) {
	id, err := requireString(data, "id", "image template")
	if err != nil {
		return sdl.ImageTemplate{}, err
	}

	source, ok := data["instructions"].(string)
	if !ok {
		source, _ = data["prompt"].(string)
	}

	var parts []sdl.TemplatePart
	if source != "" {
		parts, err = sdl.ExpandPromptString(source)
		if err != nil {
			return sdl.ImageTemplate{}, services.Wrap(services.ErrParse, "parse", "",
				fmt.Sprintf("image template '%s'", id), err)
		}
	}

	return sdl.ImageTemplate{ID: id, Parts: parts}, nil
}

func parseTTSTemplate(data map[string]any) (sdl.TTSTemplate, error) {
	id, err := requireString(data, "id", "tts template")
	if err != nil {
		return sdl.TTSTemplate{}, err
	}
	context := fmt.Sprintf("tts template '%s'", id)

	voiceID, err := requireString(data, "voice_id", context)
	if err != nil {
		return sdl.TTSTemplate{}, err
	}
	prompt, err := requireString(data, "prompt", context)
	if err != nil {
		return sdl.TTSTemplate{}, err
	}
	return sdl.TTSTemplate{ID: id, VoiceID: voiceID, Prompt: prompt}, nil
}

func parseAssets(data map[string]any) (sdl.Assets, error) {
	assets := sdl.Assets{
		Images: make(map[string][]sdl.ImageTemplate),
		TTS:    make(map[string][]sdl.TTSTemplate),
	}

	if raw, ok := data["images"]; ok {
		categories, err := asMap(raw, "assets.images")
		if err != nil {
			return sdl.Assets{}, err
		}
		for category, entries := range categories {
			list, ok := entries.([]any)
			if !ok {
				return sdl.Assets{}, parseErr(fmt.Sprintf("image category '%s' must be a list", category))
			}
			templates := make([]sdl.ImageTemplate, 0, len(list))
			for _, entry := range list {
				m, err := asMap(entry, fmt.Sprintf("image template in category '%s'", category))
				if err != nil {
					return sdl.Assets{}, err
				}
				template, err := parseImageTemplate(m)
				if err != nil {
					return sdl.Assets{}, err
				}
				templates = append(templates, template)
			}
			assets.Images[category] = templates
		}
	}

	if raw, ok := data["tts"]; ok {
		categories, err := asMap(raw, "assets.tts")
		if err != nil {
			return sdl.Assets{}, err
		}
		for category, entries := range categories {
			list, ok := entries.([]any)
			if !ok {
				return sdl.Assets{}, parseErr(fmt.Sprintf("tts category '%s' must be a list", category))
			}
			templates := make([]sdl.TTSTemplate, 0, len(list))
			for _, entry := range list {
				m, err := asMap(entry, fmt.Sprintf("tts template in category '%s'", category))
				if err != nil {
					return sdl.Assets{}, err
				}
				template, err := parseTTSTemplate(m)
				if err != nil {
					return sdl.Assets{}, err
				}
				templates = append(templates, template)
			}
			assets.TTS[category] = templates
		}
	}

	return assets, nil
}

// preprocessAssetConfig validates the $-prefix convention on variable keys
// and strips both the $ prefix from variables and the _ prefix from the
// template reference.
func preprocessAssetConfig(data map[string]any, configType, frameID string) (sdl.AssetConfig, error) {
	config := sdl.AssetConfig{Vars: make(map[string]any)}

	for key, value := range data {
		switch {
		case key == "template":
			template, ok := value.(string)
			if !ok {
				return sdl.AssetConfig{}, parseErr(fmt.Sprintf(
					"invalid %s config in frame '%s': 'template' must be a string", configType, frameID))
			}
			config.Template = strings.TrimPrefix(template, "_")
		case strings.HasPrefix(key, "$"):
			config.Vars[key[1:]] = value
		default:
			return sdl.AssetConfig{}, parseErr(fmt.Sprintf(
				"invalid %s config in frame '%s': key '%s' must be prefixed with '$' (should be '$%s'). "+
					"Only 'template' is allowed without the prefix.", configType, frameID, key, key))
		}
	}

	return config, nil
}

func parseFrame(data map[string]any) (sdl.Frame, error) {
	id, _ := data["id"].(string)
	if id == "" {
		id = "unknown"
	}
	sceneID, _ := data["scene_id"].(string)

	rawImage, ok := data["image"]
	if !ok {
		return sdl.Frame{}, parseErr(fmt.Sprintf("frame '%s' missing required field 'image'", id))
	}
	imageData, err := asMap(rawImage, fmt.Sprintf("image config of frame '%s'", id))
	if err != nil {
		return sdl.Frame{}, err
	}
	image, err := preprocessAssetConfig(imageData, "image", id)
	if err != nil {
		return sdl.Frame{}, err
	}

	frame := sdl.Frame{SceneID: sceneID, ID: id, Image: image}

	if rawTTS, ok := data["tts"]; ok {
		ttsData, err := asMap(rawTTS, fmt.Sprintf("tts config of frame '%s'", id))
		if err != nil {
			return sdl.Frame{}, err
		}
		tts, err := preprocessAssetConfig(ttsData, "tts", id)
		if err != nil {
			return sdl.Frame{}, err
		}
		frame.TTS = &tts
	}

	return frame, nil
}

func parseScene(data map[string]any) (sdl.Scene, error) {
	id, err := requireString(data, "id", "scene")
	if err != nil {
		return sdl.Scene{}, err
	}
	name, _ := data["name"].(string)

	scene := sdl.Scene{ID: id, Name: name}

	if raw, ok := data["frames"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return sdl.Scene{}, parseErr(fmt.Sprintf("frames of scene '%s' must be a list", id))
		}
		scene.Frames = make([]sdl.Frame, 0, len(list))
		for _, entry := range list {
			m, err := asMap(entry, fmt.Sprintf("frame in scene '%s'", id))
			if err != nil {
				return sdl.Scene{}, err
			}
			frame, err := parseFrame(m)
			if err != nil {
				return sdl.Scene{}, err
			}
			scene.Frames = append(scene.Frames, frame)
		}
	}

	return scene, nil
}

func parseConfig(raw any) (sdl.StoryboardConfig, error) {
	config := sdl.DefaultConfig()
	if raw == nil {
		return config, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return sdl.StoryboardConfig{}, parseErr(fmt.Sprintf("invalid config section: %v", err))
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return sdl.StoryboardConfig{}, parseErr(fmt.Sprintf("invalid config section: %v", err))
	}
	if err := config.Validate(); err != nil {
		return sdl.StoryboardConfig{}, services.Wrap(services.ErrParse, "parse", "", "config", err)
	}
	return config, nil
}

// parseSceneGraph converts the merged raw document into the typed graph.
// References and relative paths remain unresolved at this stage.
func parseSceneGraph(doc map[string]any, basePath string) (*sdl.SceneGraph, error) {
	graph := &sdl.SceneGraph{BasePath: basePath}

	if raw, ok := doc["characters"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, parseErr("characters must be a list")
		}
		graph.Characters = make([]sdl.Character, 0, len(list))
		for _, entry := range list {
			m, err := asMap(entry, "character")
			if err != nil {
				return nil, err
			}
			character, err := parseCharacter(m)
			if err != nil {
				return nil, err
			}
			graph.Characters = append(graph.Characters, character)
		}
	}

	if raw, ok := doc["assets"]; ok {
		m, err := asMap(raw, "assets")
		if err != nil {
			return nil, err
		}
		graph.Assets, err = parseAssets(m)
		if err != nil {
			return nil, err
		}
	} else {
		graph.Assets = sdl.Assets{
			Images: make(map[string][]sdl.ImageTemplate),
			TTS:    make(map[string][]sdl.TTSTemplate),
		}
	}

	if raw, ok := doc["scenes"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, parseErr("scenes must be a list")
		}
		graph.Scenes = make([]sdl.Scene, 0, len(list))
		for _, entry := range list {
			m, err := asMap(entry, "scene")
			if err != nil {
				return nil, err
			}
			scene, err := parseScene(m)
			if err != nil {
				return nil, err
			}
			graph.Scenes = append(graph.Scenes, scene)
		}
	}

	config, err := parseConfig(doc["config"])
	if err != nil {
		return nil, err
	}
	graph.Config = config

	return graph, nil
}
