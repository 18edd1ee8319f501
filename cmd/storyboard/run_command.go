package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storyboard/internal/generate"
	"storyboard/internal/load"
	"storyboard/internal/sdl"
	"storyboard/internal/validate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var inputFlag string
	var outputFlag string
	var rootDirFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate scene assets from SDL files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneration(cmd, ctx, inputFlag, outputFlag, rootDirFlag)
		},
	}

	cmd.Flags().StringVar(&inputFlag, "input", "", "Path to SDL file")
	cmd.Flags().StringVar(&outputFlag, "output", "", "Output directory for generated scenes (default: from document config)")
	cmd.Flags().StringVar(&rootDirFlag, "root-dir", "", "Root directory for resolving the input and output paths")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runGeneration(cmd *cobra.Command, ctx *commandContext, input, output, rootDir string) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	inputPath, outputPath, basePath := resolveDocumentPaths(input, output, rootDir)

	fmt.Fprintf(out, "Loading scene graph from: %s\n", inputPath)
	graph, err := load.SceneGraph(inputPath, basePath)
	if err != nil {
		return fmt.Errorf("load scene graph: %w", err)
	}

	fmt.Fprintln(out, "Validating scene graph...")
	if err := validate.Graph(graph, basePath); err != nil {
		return err
	}

	outputBase := effectiveOutputBase(outputPath, graph)
	if err := os.MkdirAll(outputBase, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(outputBase, ".storyboard.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another storyboard run is already writing to %s", outputBase)
	}
	defer lock.Unlock()

	images, err := ctx.imageBackend(graph.Config.Image.DefaultModel.Vendor)
	if err != nil {
		return err
	}
	var speech generate.SpeechBackend
	if graphHasTTS(graph) {
		speech, err = ctx.speechBackend(graph.Config.TTS.DefaultModel.Vendor)
		if err != nil {
			return err
		}
	}

	sceneIDs := make([]string, 0, len(graph.Scenes))
	for _, scene := range graph.Scenes {
		sceneIDs = append(sceneIDs, scene.ID)
	}
	fmt.Fprintf(out, "\nGenerating all scenes: %s\n", strings.Join(sceneIDs, ", "))

	runID := uuid.NewString()
	opts := []generate.Option{
		generate.WithLogger(logger),
		generate.WithCallback(newConsoleProgress(out)),
		generate.WithFFmpegPath(cfg.Tools.FFmpeg),
	}
	if cfg.Generation.RateLimitPerSecond > 0 {
		opts = append(opts, generate.WithRateLimit(cfg.Generation.RateLimitPerSecond))
	}
	generator := generate.New(graph, images, speech, opts...)

	results := generator.GenerateScenes(cmd.Context(), sceneIDs, outputBase)

	for _, result := range results {
		if err := generate.WriteSceneMetadata(outputBase, generate.SceneMetadataFrom(result)); err != nil {
			return fmt.Errorf("write scene metadata: %w", err)
		}
	}
	if err := generate.WriteRootMetadata(outputBase, inputPath, runID, results); err != nil {
		return fmt.Errorf("write root metadata: %w", err)
	}
	if err := generate.CleanupOrphans(outputBase, logger); err != nil {
		logger.Warn("orphan cleanup failed", "error", err)
	}

	duration := time.Since(startTime)
	failed := 0
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if result.Failed() {
			status = "failed"
			failed++
		}
		rows = append(rows, []string{result.SceneID, fmt.Sprintf("%d", len(result.Frames)), status})
	}

	fmt.Fprintln(out, "\nGeneration complete!")
	fmt.Fprintln(out, renderTable([]string{"Scene", "Frames", "Status"}, rows, 1))
	fmt.Fprintf(out, "  Successful: %d/%d\n", len(results)-failed, len(sceneIDs))
	fmt.Fprintf(out, "  Duration: %.1fs\n", duration.Seconds())

	if failed > 0 || len(results) < len(sceneIDs) {
		for _, result := range results {
			for _, task := range result.FailedAssets {
				fmt.Fprintf(out, "    %s/%s %s: %s\n", result.SceneID, task.FrameID, task.Type, task.Err)
			}
		}
		return fmt.Errorf("%d of %d scenes failed", len(sceneIDs)-(len(results)-failed), len(sceneIDs))
	}
	fmt.Fprintln(out, "  All scenes generated successfully")
	return nil
}

func graphHasTTS(graph *sdl.SceneGraph) bool {
	for _, scene := range graph.Scenes {
		for _, frame := range scene.Frames {
			if frame.TTS != nil {
				return true
			}
		}
	}
	return false
}
