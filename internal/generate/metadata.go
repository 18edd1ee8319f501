package generate

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"storyboard/internal/services"
)

// FrameMetadata is the persisted record of one generated frame.
type FrameMetadata struct {
	FrameID      string        `json:"frame_id"`
	Speaker      any           `json:"speaker"`
	Dialogue     any           `json:"dialogue"`
	Assets       AssetMetadata `json:"assets"`
	TemplateUsed string        `json:"template_used"`
}

// AssetMetadata groups the asset records of a frame.
type AssetMetadata struct {
	Image AssetResult  `json:"image"`
	Audio *AssetResult `json:"audio"`
}

// SceneMetadata is the metadata.json document written per scene.
type SceneMetadata struct {
	SceneID   string          `json:"scene_id"`
	SceneName string          `json:"scene_name"`
	Frames    []FrameMetadata `json:"frames"`
}

// SceneIndexEntry summarizes one scene in the root metadata document.
type SceneIndexEntry struct {
	SceneID      string `json:"scene_id"`
	SceneName    string `json:"scene_name"`
	FrameCount   int    `json:"frame_count"`
	MetadataPath string `json:"metadata_path"`
}

// GenerationMetadata records the provenance of a run.
type GenerationMetadata struct {
	GeneratedAt  string   `json:"generated_at"`
	SDLFile      string   `json:"sdl_file"`
	RunID        string   `json:"run_id,omitempty"`
	TotalScenes  int      `json:"total_scenes"`
	FailedScenes []string `json:"failed_scenes"`
}

// RootMetadata is the metadata.json document at the output root.
type RootMetadata struct {
	Scenes     []SceneIndexEntry  `json:"scenes"`
	Generation GenerationMetadata `json:"generation_metadata"`
}

// SceneMetadataFrom converts a generation result to its persisted form.
func SceneMetadataFrom(result SceneResult) SceneMetadata {
	metadata := SceneMetadata{
		SceneID:   result.SceneID,
		SceneName: result.SceneName,
		Frames:    make([]FrameMetadata, 0, len(result.Frames)),
	}
	for _, frame := range result.Frames {
		metadata.Frames = append(metadata.Frames, FrameMetadata{
			FrameID:  frame.FrameID,
			Speaker:  frame.Speaker,
			Dialogue: frame.Dialogue,
			Assets: AssetMetadata{
				Image: frame.Image,
				Audio: frame.Audio,
			},
			TemplateUsed: frame.TemplateUsed,
		})
	}
	return metadata
}

// WriteSceneMetadata writes the per-scene metadata.json under outputBase.
func WriteSceneMetadata(outputBase string, metadata SceneMetadata) error {
	sceneDir := filepath.Join(outputBase, metadata.SceneID)
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return services.Wrap(services.ErrGeneration, "metadata", "write", sceneDir, err)
	}
	return writeJSON(filepath.Join(sceneDir, "metadata.json"), metadata)
}

// WriteRootMetadata writes the root metadata.json. Only scenes with no
// failed assets are indexed; failed scenes are named in the generation
// record instead.
func WriteRootMetadata(outputBase, sdlFile, runID string, results []SceneResult) error {
	var entries []SceneIndexEntry
	var failed []string
	for _, result := range results {
		if result.Failed() {
			failed = append(failed, result.SceneID)
			continue
		}
		entries = append(entries, SceneIndexEntry{
			SceneID:      result.SceneID,
			SceneName:    result.SceneName,
			FrameCount:   len(result.Frames),
			MetadataPath: result.SceneID + "/metadata.json",
		})
	}
	if len(entries) == 0 {
		return nil
	}
	if failed == nil {
		failed = []string{}
	}

	metadata := RootMetadata{
		Scenes: entries,
		Generation: GenerationMetadata{
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			SDLFile:      sdlFile,
			RunID:        runID,
			TotalScenes:  len(entries),
			FailedScenes: failed,
		},
	}
	return writeJSON(filepath.Join(outputBase, "metadata.json"), metadata)
}

// PatchSceneMetadata rewrites the asset records of one frame in an existing
// scene metadata.json. Missing metadata is not an error; there is nothing
// to patch on a first run.
func PatchSceneMetadata(outputBase, sceneID, frameID string, result FrameResult, assetTypes map[AssetType]bool) error {
	path := filepath.Join(outputBase, sceneID, "metadata.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return services.Wrap(services.ErrGeneration, "metadata", "patch", path, err)
	}

	var metadata SceneMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return services.Wrap(services.ErrGeneration, "metadata", "patch", path, err)
	}

	for i := range metadata.Frames {
		if metadata.Frames[i].FrameID != frameID {
			continue
		}
		if assetTypes == nil || assetTypes[AssetImage] {
			metadata.Frames[i].Assets.Image = result.Image
		}
		if assetTypes == nil || assetTypes[AssetAudio] {
			metadata.Frames[i].Assets.Audio = result.Audio
		}
		break
	}

	return writeJSON(path, metadata)
}

// CleanupOrphans removes scene and frame directories under outputBase that
// the metadata no longer references. Stale directories accumulate when
// scenes or frames are renamed between runs.
func CleanupOrphans(outputBase string, logger *slog.Logger) error {
	rootPath := filepath.Join(outputBase, "metadata.json")
	data, err := os.ReadFile(rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no root metadata found, skipping cleanup", "path", rootPath)
			return nil
		}
		return services.Wrap(services.ErrGeneration, "cleanup", "read", rootPath, err)
	}

	var root RootMetadata
	if err := json.Unmarshal(data, &root); err != nil {
		return services.Wrap(services.ErrGeneration, "cleanup", "parse", rootPath, err)
	}

	validScenes := make(map[string]struct{}, len(root.Scenes))
	for _, scene := range root.Scenes {
		validScenes[scene.SceneID] = struct{}{}
	}

	entries, err := os.ReadDir(outputBase)
	if err != nil {
		return services.Wrap(services.ErrGeneration, "cleanup", "read dir", outputBase, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := validScenes[entry.Name()]; ok {
			continue
		}
		logger.Info("removing orphaned scene directory", "scene", entry.Name())
		if err := os.RemoveAll(filepath.Join(outputBase, entry.Name())); err != nil {
			return services.Wrap(services.ErrGeneration, "cleanup", "remove", entry.Name(), err)
		}
	}

	for sceneID := range validScenes {
		if err := cleanupSceneFrames(outputBase, sceneID, logger); err != nil {
			return err
		}
	}
	return nil
}

func cleanupSceneFrames(outputBase, sceneID string, logger *slog.Logger) error {
	sceneDir := filepath.Join(outputBase, sceneID)
	data, err := os.ReadFile(filepath.Join(sceneDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("scene has no metadata, skipping frame cleanup", "scene", sceneID)
			return nil
		}
		return services.Wrap(services.ErrGeneration, "cleanup", "read", sceneDir, err)
	}

	var metadata SceneMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return services.Wrap(services.ErrGeneration, "cleanup", "parse", sceneDir, err)
	}

	validFrames := make(map[string]struct{}, len(metadata.Frames))
	for _, frame := range metadata.Frames {
		validFrames[frame.FrameID] = struct{}{}
	}

	entries, err := os.ReadDir(sceneDir)
	if err != nil {
		return services.Wrap(services.ErrGeneration, "cleanup", "read dir", sceneDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, ok := validFrames[entry.Name()]; ok {
			continue
		}
		logger.Info("removing orphaned frame directory", "scene", sceneID, "frame", entry.Name())
		if err := os.RemoveAll(filepath.Join(sceneDir, entry.Name())); err != nil {
			return services.Wrap(services.ErrGeneration, "cleanup", "remove", entry.Name(), err)
		}
	}
	return nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrGeneration, "metadata", "encode", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrGeneration, "metadata", "write", path, err)
	}
	return nil
}
