// Package logging builds the application's slog loggers. The console
// format is a compact single-line layout with flattened attribute groups
// and optional ANSI color on terminals; the json format is standard
// machine-readable output for captured runs.
package logging
