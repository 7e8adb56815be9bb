package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Options configures New.
type Options struct {
	// debug, info, warn, error
	Level string `yaml:"level" toml:"level" ini:"level" validate:"omitempty,oneof=debug info warn error"`
	// text, json
	Format    string `yaml:"format" toml:"format" ini:"format" validate:"omitempty,oneof=text json"`
	AddSource bool   `yaml:"addSource" toml:"addSource" ini:"addSource"`
}

// New builds a logger writing to stderr.
func New(options Options) (*slog.Logger, error) {
	return NewWithWriter(options, os.Stderr)
}

func NewWithWriter(options Options, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: options.AddSource}

	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, errors.Errorf("unsupported log format: %s", options.Format)
	}
	return slog.New(handler), nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Errorf("invalid log level: %s", s)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
