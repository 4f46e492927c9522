// Package logging sets up the JSONL log that every parley command appends to.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rbright/parley/internal/paths"
)

const logFile = "log.jsonl"

// Runtime owns the log file behind Logger.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	file   *os.File
}

func (r Runtime) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// New opens $XDG_STATE_HOME/parley/log.jsonl for appending. verbose enables
// debug records.
func New(verbose bool) (Runtime, error) {
	f, err := paths.CreateStateFile(os.O_APPEND, logFile)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log file: %w", err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(f, opts)).With("pid", os.Getpid())
	return Runtime{Logger: logger, Path: f.Name(), file: f}, nil
}

// Discard returns a logger that drops everything, for callers passing nil.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
