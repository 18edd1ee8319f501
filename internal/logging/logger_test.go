package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  ERROR  ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func consoleLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(level)
	return slog.New(newConsoleHandler(buf, lvl, false))
}

func TestConsoleHandlerLine(t *testing.T) {
	var buf bytes.Buffer
	logger := consoleLogger(&buf, slog.LevelInfo)

	logger.Info("asset complete", "scene", "intro", "attempt", 2, "duration", 1500*time.Millisecond)

	line := strings.TrimSuffix(buf.String(), "\n")
	if strings.Contains(line, "\n") {
		t.Fatalf("expected a single line, got %q", buf.String())
	}
	// Timestamp prefix, then level, then message, then flattened attrs.
	if len(line) < 9 || line[2] != ':' || line[5] != ':' {
		t.Fatalf("missing HH:MM:SS prefix: %q", line)
	}
	rest := line[9:]
	if !strings.HasPrefix(rest, "INFO  asset complete") {
		t.Fatalf("unexpected line body: %q", rest)
	}
	for _, want := range []string{"scene=intro", "attempt=2", "duration=1.5s"} {
		if !strings.Contains(rest, want) {
			t.Fatalf("missing %q in %q", want, rest)
		}
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := consoleLogger(&buf, slog.LevelInfo)

	logger.Info("run", "path", "/out/my scenes", "empty", "")

	out := buf.String()
	if !strings.Contains(out, `path="/out/my scenes"`) {
		t.Fatalf("value with spaces not quoted: %q", out)
	}
	if !strings.Contains(out, `empty=""`) {
		t.Fatalf("empty value not quoted: %q", out)
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := consoleLogger(&buf, slog.LevelInfo).WithGroup("frame").With("scene", "intro")

	logger.Info("generated", "id", "opening")

	out := buf.String()
	if !strings.Contains(out, "frame.scene=intro") {
		t.Fatalf("group prefix missing on handler attr: %q", out)
	}
	if !strings.Contains(out, "frame.id=opening") {
		t.Fatalf("group prefix missing on record attr: %q", out)
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := consoleLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked past warn level: %q", out)
	}
	if !strings.Contains(out, "WARN  visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestJSONHandlerKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	logger.Error("generation failed", "scene", "intro")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json output %q: %v", buf.String(), err)
	}
	if record["msg"] != "generation failed" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record["level"] != "error" {
		t.Fatalf("level = %v", record["level"])
	}
	ts, ok := record["ts"].(string)
	if !ok {
		t.Fatalf("ts missing: %v", record)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("ts %q not RFC3339: %v", ts, err)
	}
	if record["scene"] != "intro" {
		t.Fatalf("scene = %v", record["scene"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "storyboard.log")
	logger, err := New(Options{Level: "info", Format: "console", LogFile: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("file sink works")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file sink works") {
		t.Fatalf("log file content = %q", data)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(nil, slog.LevelError) {
		t.Fatal("nop logger must report disabled")
	}
	logger.Error("never seen")
}
