package config

const (
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultGeminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiTimeoutSeconds = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Gemini: Gemini{
			BaseURL:        defaultGeminiBaseURL,
			TimeoutSeconds: defaultGeminiTimeoutSeconds,
		},
	}
}
