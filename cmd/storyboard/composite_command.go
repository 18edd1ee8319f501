package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"storyboard/internal/composite"
	"storyboard/internal/load"
	"storyboard/internal/sdl"
)

func newCompositeCommand(ctx *commandContext) *cobra.Command {
	compositeCmd := &cobra.Command{
		Use:   "composite",
		Short: "Create composite outputs from generated scenes",
	}

	compositeCmd.AddCommand(newMovieCommand(ctx))

	return compositeCmd
}

func newMovieCommand(ctx *commandContext) *cobra.Command {
	var inputFlag string
	var outputFlag string
	var resolutionFlag string

	cmd := &cobra.Command{
		Use:   "movie <scene-folder>",
		Short: "Assemble all generated scenes into a single movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMovie(cmd, ctx, args[0], inputFlag, outputFlag, resolutionFlag)
		},
	}

	cmd.Flags().StringVar(&inputFlag, "input", "", "SDL file supplying the movie configuration")
	cmd.Flags().StringVar(&outputFlag, "output", "", "Output path for the movie (default: <scene-folder>/movie.mp4)")
	cmd.Flags().StringVar(&resolutionFlag, "resolution", "", "Override output resolution (e.g. 1280x720)")

	return cmd
}

func runMovie(cmd *cobra.Command, ctx *commandContext, sceneFolder, input, output, resolution string) error {
	out := cmd.OutOrStdout()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	if _, err := os.Stat(sceneFolder); err != nil {
		return fmt.Errorf("scene folder not found: %s", sceneFolder)
	}
	if _, err := os.Stat(filepath.Join(sceneFolder, "metadata.json")); err != nil {
		return fmt.Errorf("metadata.json not found in %s; run 'storyboard run' first to generate scenes", sceneFolder)
	}

	movieCfg := sdl.DefaultConfig().Composite.Movie
	if input != "" {
		graph, err := load.SceneGraph(input, filepath.Dir(input))
		if err != nil {
			return fmt.Errorf("load SDL config: %w", err)
		}
		movieCfg = graph.Config.Composite.Movie
	}
	if resolution != "" {
		if _, _, err := sdl.ParseResolution(resolution); err != nil {
			return err
		}
		movieCfg.Resolution = resolution
	}

	outputPath := output
	if outputPath == "" {
		outputPath = filepath.Join(sceneFolder, movieCfg.OutputFilename)
	}

	fmt.Fprintln(out, "Creating movie...")
	fmt.Fprintf(out, "  Scene folder: %s\n", absPath(sceneFolder))
	fmt.Fprintf(out, "  Output: %s\n", absPath(outputPath))
	fmt.Fprintf(out, "  Resolution: %s\n", movieCfg.Resolution)

	assembler := composite.NewAssembler(
		composite.WithTools(cfg.Tools.FFmpeg, cfg.Tools.FFprobe),
		composite.WithLogger(logger),
	)
	if err := assembler.CreateMovie(cmd.Context(), sceneFolder, outputPath, movieCfg); err != nil {
		return fmt.Errorf("create movie: %w", err)
	}

	fmt.Fprintf(out, "\nMovie created successfully: %s\n", outputPath)
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
