package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration
type Config struct {
	Level      string `json:"level"`       // trace, debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output instead of console
	Output     io.Writer
}

var root zerolog.Logger

func init() {
	root = build(Config{Level: "info"})
}

// Init configures the package-level logger. Call once at startup, before
// components grab their child loggers.
func Init(cfg Config) {
	root = build(cfg)
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Root returns the package-level logger.
func Root() zerolog.Logger {
	return root
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
