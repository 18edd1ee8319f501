package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"storyboard/internal/generate"
	"storyboard/internal/load"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var inputFlag string
	var outputFlag string
	var rootDirFlag string
	var selectorFlag string
	var useCacheFlag bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Regenerate assets for a single frame",
		Long: `Regenerate the image and/or audio assets of one frame and patch the
scene metadata in place. The selector has the form <scene>.<frame> with an
optional trailing .image or .tts to regenerate only one asset type.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, ctx, inputFlag, outputFlag, rootDirFlag, selectorFlag, useCacheFlag)
		},
	}

	cmd.Flags().StringVar(&inputFlag, "input", "", "Path to SDL file")
	cmd.Flags().StringVar(&outputFlag, "output", "", "Output directory for generated scenes (default: from document config)")
	cmd.Flags().StringVar(&rootDirFlag, "root-dir", "", "Root directory for resolving the input and output paths")
	cmd.Flags().StringVar(&selectorFlag, "selector", "", "Frame selector: <scene>.<frame>[.image|.tts]")
	cmd.Flags().BoolVar(&useCacheFlag, "use-cache", false, "Reuse cached assets instead of forcing regeneration")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("selector")

	return cmd
}

func runUpdate(cmd *cobra.Command, ctx *commandContext, input, output, rootDir, selector string, useCache bool) error {
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

	graph, err := load.SceneGraph(inputPath, basePath)
	if err != nil {
		return fmt.Errorf("load scene graph: %w", err)
	}

	sceneID, frameID, assetTypes, err := parseUpdateSelector(selector, graph)
	if err != nil {
		return err
	}

	assetNames := make([]string, 0, len(assetTypes))
	for assetType := range assetTypes {
		assetNames = append(assetNames, string(assetType))
	}
	sort.Strings(assetNames)
	assetLabel := strings.Join(assetNames, "/")
	fmt.Fprintf(out, "Target: scene=%s, frame=%s, assets=%s\n", sceneID, frameID, assetLabel)

	images, err := ctx.imageBackend(graph.Config.Image.DefaultModel.Vendor)
	if err != nil {
		return err
	}
	var speech generate.SpeechBackend
	if assetTypes[generate.AssetAudio] {
		speech, err = ctx.speechBackend(graph.Config.TTS.DefaultModel.Vendor)
		if err != nil {
			return err
		}
	}

	outputBase := effectiveOutputBase(outputPath, graph)
	sceneDir := filepath.Join(outputBase, sceneID)

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

	fmt.Fprintf(out, "Generating %s...\n", assetLabel)
	if useCache {
		fmt.Fprintln(out, "  Using cache if available")
	} else {
		fmt.Fprintln(out, "  Bypassing cache (forcing regeneration)")
	}

	generator := generate.New(graph, images, speech,
		generate.WithLogger(logger),
		generate.WithFFmpegPath(cfg.Tools.FFmpeg),
	)

	result, failures, err := generator.GenerateFrameSelective(cmd.Context(), sceneID, frameID, sceneDir, assetTypes, useCache)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if err := generate.PatchSceneMetadata(outputBase, sceneID, frameID, result, assetTypes); err != nil {
		return fmt.Errorf("update scene metadata: %w", err)
	}

	fmt.Fprintf(out, "\nUpdate complete in %.1fs\n", time.Since(startTime).Seconds())
	fmt.Fprintf(out, "Scene: %s\nFrame: %s\nAssets: %s\n", sceneID, frameID, assetLabel)

	if len(failures) > 0 {
		fmt.Fprintln(out, "\nFailed assets:")
		for _, task := range failures {
			fmt.Fprintf(out, "  %s: %s\n", task.Type, task.Err)
		}
		return fmt.Errorf("%d asset(s) failed", len(failures))
	}
	fmt.Fprintln(out, "All assets updated successfully")
	return nil
}
