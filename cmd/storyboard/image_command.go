package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"storyboard/internal/generate"
	"storyboard/internal/sdl"
)

func newImageCommand(ctx *commandContext) *cobra.Command {
	var promptFlag string
	var referencePhotos []string
	var modelFlag string
	var outputFlag string
	var webpFlag bool
	var noCacheFlag bool
	var cacheDirFlag string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate a single image with Gemini",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := geminiImageModel(modelFlag)
			if err != nil {
				return err
			}

			parts := make([]sdl.TemplatePart, 0, len(referencePhotos)+1)
			for _, photo := range referencePhotos {
				parts = append(parts, sdl.TemplatePart{Type: sdl.PartImage, Content: photo})
			}
			parts = append(parts, sdl.TemplatePart{Type: sdl.PartPrompt, Content: promptFlag})

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			backend, err := ctx.imageBackend(sdl.VendorGemini)
			if err != nil {
				return err
			}

			hash := generate.ImageCacheHash(parts, model)
			cachePath := filepath.Join(cacheDirFlag, fmt.Sprintf("image_%s.png", hash))
			cached := !noCacheFlag && fileExists(cachePath)

			if !cached {
				data, err := backend.GenerateImage(cmd.Context(), generate.ImageRequest{Model: model, Parts: parts})
				if err != nil {
					return fmt.Errorf("generate image: %w", err)
				}
				if err := os.MkdirAll(cacheDirFlag, 0o755); err != nil {
					return fmt.Errorf("create cache directory: %w", err)
				}
				if err := os.WriteFile(cachePath, data, 0o644); err != nil {
					return fmt.Errorf("write image: %w", err)
				}
			}

			outputPath := cachePath
			if webpFlag {
				converted, err := generate.ToWebP(cmd.Context(), cfg.Tools.FFmpeg, cachePath, "", 80)
				if err != nil {
					return fmt.Errorf("convert to webp: %w", err)
				}
				outputPath = converted
			}

			if outputFlag != "" {
				if err := copyFile(outputPath, outputFlag); err != nil {
					return fmt.Errorf("copy output: %w", err)
				}
				outputPath = outputFlag
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Image: %s\n", outputPath)
			fmt.Fprintf(out, "Cached: %t\n", cached)
			fmt.Fprintf(out, "Hash: %s\n", hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&promptFlag, "prompt", "", "Text prompt for image generation")
	cmd.Flags().StringArrayVar(&referencePhotos, "reference-photo", nil, "Path to a reference image (repeatable)")
	cmd.Flags().StringVar(&modelFlag, "model", "pro", "Model selection: 'pro' or 'flash'")
	cmd.Flags().StringVar(&outputFlag, "output", "", "Optional output path (copies from cache to this location)")
	cmd.Flags().BoolVar(&webpFlag, "webp", false, "Convert output to WebP format")
	cmd.Flags().BoolVar(&noCacheFlag, "no-cache", false, "Disable cache (always generate a new image)")
	cmd.Flags().StringVar(&cacheDirFlag, "cache-directory", ".storyboard/generated/images", "Cache directory for generated images")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func geminiImageModel(selection string) (string, error) {
	switch selection {
	case "pro":
		return "gemini-3-pro-image-preview", nil
	case "flash":
		return "gemini-2.5-flash-image", nil
	default:
		return "", fmt.Errorf("invalid model %q: must be 'pro' or 'flash'", selection)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
