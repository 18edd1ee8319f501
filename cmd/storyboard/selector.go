package main

import (
	"fmt"
	"strings"

	"storyboard/internal/generate"
	"storyboard/internal/sdl"
)

// parseUpdateSelector resolves a "scene.frame[.asset]" selector against the
// graph. The asset component accepts "image", "audio", or "tts" (an alias
// for audio); omitting it selects both asset types.
func parseUpdateSelector(selector string, graph *sdl.SceneGraph) (string, string, map[generate.AssetType]bool, error) {
	parts := strings.Split(selector, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", nil, fmt.Errorf("invalid selector format: '%s'. Expected: <scene>.<frame>[.<asset_type>]", selector)
	}

	sceneSelector, frameSelector := parts[0], parts[1]

	assetTypes := map[generate.AssetType]bool{generate.AssetImage: true, generate.AssetAudio: true}
	if len(parts) == 3 {
		switch parts[2] {
		case "image":
			assetTypes = map[generate.AssetType]bool{generate.AssetImage: true}
		case "tts", "audio":
			assetTypes = map[generate.AssetType]bool{generate.AssetAudio: true}
		default:
			return "", "", nil, fmt.Errorf("invalid asset type: '%s'. Must be 'image' or 'tts'", parts[2])
		}
	}

	scene, ok := graph.SceneByID(sceneSelector)
	if !ok {
		available := make([]string, 0, len(graph.Scenes))
		for _, s := range graph.Scenes {
			available = append(available, s.ID)
		}
		return "", "", nil, fmt.Errorf("scene not found: '%s'\nAvailable scenes:\n  %s", sceneSelector, strings.Join(available, ", "))
	}

	frame, ok := scene.FrameByID(frameSelector)
	if !ok {
		available := make([]string, 0, len(scene.Frames))
		for _, f := range scene.Frames {
			available = append(available, f.ID)
		}
		return "", "", nil, fmt.Errorf("frame not found in scene '%s': '%s'\nAvailable frames in %s:\n  %s",
			scene.ID, frameSelector, scene.ID, strings.Join(available, ", "))
	}

	return scene.ID, frame.ID, assetTypes, nil
}
