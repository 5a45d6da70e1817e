// Package logging builds the logr.Logger used by the CLI on top of
// charmbracelet/log.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-logr/logr"
)

// New creates a logger writing to w at level. Debug enables V(1) entries
// and reports timestamps.
func New(w io.Writer, level string) logr.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	debug := lvl <= log.DebugLevel

	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: debug,
		ReportCaller:    false,
		Prefix:          "cmpkit",
	})
	return logr.FromSlogHandler(slog.Handler(handler))
}
