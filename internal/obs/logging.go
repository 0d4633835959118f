// Package obs is the ambient observability stack shared by every
// collaborator: structured logging, OTel metrics/tracing, and
// host diagnostics for the `health-check` CLI command. Adapted from
// internal/otel (OTel SDK wiring, stdout exporters by default, swappable
// for OTLP) and cmd/agent/main.go's gopsutil usage, generalized from
// per-MCP-session/VU instrumentation to per-harvest-run instrumentation.
package obs

import (
	"log/slog"
	"os"
)

// NewLogger builds the structured logger every package in this module
// takes as a dependency. JSON output at info level by default, preferring
// machine-parseable log lines over plain log.Printf calls.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
