package load

import (
	"path/filepath"
	"strings"

	"storyboard/internal/sdl"
)

// resolveFilePaths rewrites relative file paths in the graph to absolute
// paths anchored at the graph's base path. Reference strings (@...) and
// template variables are left alone; only values that plainly look like
// file paths are touched.
func resolveFilePaths(graph *sdl.SceneGraph) (*sdl.SceneGraph, error) {
	base := graph.BasePath

	for i := range graph.Characters {
		photo := graph.Characters[i].ReferencePhoto
		if photo != "" && !strings.HasPrefix(photo, "@") {
			graph.Characters[i].ReferencePhoto = resolvePath(photo, base)
		}
	}

	for _, templates := range graph.Assets.Images {
		for i := range templates {
			for j := range templates[i].Parts {
				part := &templates[i].Parts[j]
				if part.Type == sdl.PartImage && part.Content != "" && part.Key == "" {
					part.Content = resolvePath(part.Content, base)
				}
			}
		}
	}

	for i := range graph.Scenes {
		for j := range graph.Scenes[i].Frames {
			vars := graph.Scenes[i].Frames[j].Image.Vars
			for key, value := range vars {
				s, ok := value.(string)
				if !ok || strings.HasPrefix(s, "@") {
					continue
				}
				if strings.Contains(s, "/") || sdl.HasKnownImageExtension(s) {
					vars[key] = resolvePath(s, base)
				}
			}
		}
	}

	return graph, nil
}

func resolvePath(path, base string) string {
	if filepath.IsAbs(path) {
		return path
	}
	path = strings.TrimPrefix(path, "./")
	resolved, err := filepath.Abs(filepath.Join(base, path))
	if err != nil {
		return filepath.Join(base, path)
	}
	return resolved
}
