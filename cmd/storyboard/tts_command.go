package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"storyboard/internal/generate"
	"storyboard/internal/media"
	"storyboard/internal/sdl"
)

const oneShotTTSModel = "gemini-2.5-flash-preview-tts"

func newTTSCommand(ctx *commandContext) *cobra.Command {
	var voiceIDFlag string
	var styleFlag string
	var contentFlag string
	var outputPathFlag string
	var outputNameFlag string
	var cacheDirFlag string

	cmd := &cobra.Command{
		Use:   "tts",
		Short: "Generate TTS audio with Gemini",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.speechBackend(sdl.VendorGemini)
			if err != nil {
				return err
			}

			prompt := contentFlag
			if styleFlag != "" {
				prompt = styleFlag + "\n\n" + contentFlag
			}

			hash := generate.TTSCacheHash(string(sdl.VendorGemini), oneShotTTSModel, voiceIDFlag, prompt)
			cachePath := filepath.Join(cacheDirFlag, fmt.Sprintf("tts_%s.wav", hash))
			cached := fileExists(cachePath)

			if !cached {
				pcm, err := backend.GenerateSpeech(cmd.Context(), generate.SpeechRequest{
					Model:   oneShotTTSModel,
					VoiceID: voiceIDFlag,
					Prompt:  prompt,
				})
				if err != nil {
					return fmt.Errorf("generate speech: %w", err)
				}
				if err := os.MkdirAll(cacheDirFlag, 0o755); err != nil {
					return fmt.Errorf("create cache directory: %w", err)
				}
				if err := media.WriteWAV(cachePath, pcm, media.DefaultSampleRate, media.DefaultChannels, media.DefaultSampleSize); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
			}

			if err := os.MkdirAll(outputPathFlag, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			outputFile := filepath.Join(outputPathFlag, outputNameFlag+".wav")
			if err := copyFile(cachePath, outputFile); err != nil {
				return fmt.Errorf("copy output: %w", err)
			}

			duration, err := media.WAVDuration(outputFile)
			if err != nil {
				return fmt.Errorf("read audio duration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated: %s\n", outputFile)
			fmt.Fprintf(out, "Duration: %.2fs\n", duration)
			if cached {
				fmt.Fprintln(out, "Cache: HIT")
			} else {
				fmt.Fprintln(out, "Cache: MISS")
			}
			fmt.Fprintf(out, "Hash: %s\n", hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&voiceIDFlag, "voice-id", "", "Gemini voice name (e.g. 'Aoede', 'Charon')")
	cmd.Flags().StringVar(&styleFlag, "style-instructions", "", "Voice style prompt for the TTS model")
	cmd.Flags().StringVar(&contentFlag, "content", "", "Text content to synthesize")
	cmd.Flags().StringVar(&outputPathFlag, "output-path", "", "Directory path for the output file")
	cmd.Flags().StringVar(&outputNameFlag, "output-name", "", "Base filename without extension (e.g. 'dialogue')")
	cmd.Flags().StringVar(&cacheDirFlag, "cache-directory", ".storyboard/generated/audio", "Cache directory for generated audio files")
	_ = cmd.MarkFlagRequired("voice-id")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("output-path")
	_ = cmd.MarkFlagRequired("output-name")

	return cmd
}
