// Package logger builds the logrus logger the repair engine and its CLI
// share. Configuration is a plain record sourced from internal/config;
// there is no global logger and no init-time side effect, so tests and
// library consumers construct exactly the logger they want.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger; the embedded methods (WithField, Info,
// ...) are the API.
type Logger struct {
	*logrus.Logger
}

// Config selects level, format, and destination.
type Config struct {
	// Level is a logrus level name ("debug", "info", "warn", "error");
	// unrecognised values fall back to info.
	Level string `toml:"level"`
	// Format is "json" for machine-shipped logs or anything else for
	// human-readable text.
	Format string `toml:"format"`
	// Output is "stdout", "stderr", or a file path opened for append.
	// An unopenable path falls back to stderr so a bad config never
	// silences a long-running watch deployment.
	Output string `toml:"output"`
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableLevelTruncation: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: opening %s: %v; logging to stderr\n", cfg.Output, err)
			l.SetOutput(os.Stderr)
			break
		}
		l.SetOutput(f)
	}

	return &Logger{Logger: l}
}

// NewDefault builds an info-level text logger on stdout, used by
// subcommands before a config file is loaded.
func NewDefault() *Logger {
	return New(Config{})
}

// WithComponent returns an entry tagged with the subsystem emitting it,
// so one process's repair, watch, and serve lines are separable.
func (l *Logger) WithComponent(name string) *logrus.Entry {
	return l.Logger.WithField("component", name)
}
