package truetm

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger. The process owns the controlling
// terminal, so diagnostics go to a rotated file under the user's state
// directory, never to stderr. The level comes from SIMPLEX_LOG.
func NewLogger() *log.Logger {
	level := log.WarnLevel
	switch os.Getenv("SIMPLEX_LOG") {
	case "debug":
		level = log.DebugLevel
	case "info":
		level = log.InfoLevel
	case "error":
		level = log.ErrorLevel
	}

	var out io.Writer = io.Discard
	if dir := stateDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			out = &lumberjack.Logger{
				Filename:   filepath.Join(dir, "simplex.log"),
				MaxSize:    5, // MB
				MaxBackups: 2,
			}
		}
	}

	return log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

// stateDir resolves $XDG_STATE_HOME/simplex, falling back to
// ~/.local/state/simplex.
func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "simplex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "simplex")
}
