// Package logging builds the slog loggers used across vvharness.
//
// Records are rendered by charmbracelet/log. Code outside this package only
// sees *slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: %w", err)
	}
	return slog.Level(lvl), nil
}

// New returns a logger writing human-readable records to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	return slog.New(handler)
}

// Discard returns a logger that drops every record. The child process uses
// it because its stderr is compared against snapshots.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
