// Package logger builds the client's slog logger from config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"hotpatch/internal/infra/config"
)

// Output targets other than a file path.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New creates a logger for the status widget mode, where log lines go to
// the configured output and never reach the terminal the widget draws on.
// The returned closer releases the log file, if any.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	return build(cfg, false)
}

// NewPlain creates a logger for plain mode, where log lines are the only
// output the user sees. The default log file is swapped for stderr and text
// lines drop the timestamp. An output set explicitly is kept.
func NewPlain(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	if cfg.Output == config.Defaults().Logger.Output {
		cfg.Output = OutputStderr
	}
	return build(cfg, true)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func build(cfg config.LoggerConfig, plain bool) (*slog.Logger, func() error, error) {
	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %q: %w", cfg.Output, err)
	}
	return slog.New(newHandler(w, cfg, plain)), closer, nil
}

func newHandler(w io.Writer, cfg config.LoggerConfig, plain bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	if plain {
		opts.ReplaceAttr = dropTime
	}
	return slog.NewTextHandler(w, opts)
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// parseLevel maps a config level to slog.Level; unknown values mean info.
func parseLevel(s string) slog.Level {
	if l, ok := levels[strings.ToLower(s)]; ok {
		return l
	}
	return slog.LevelInfo
}

// openOutput opens a std stream or appends to a file, creating its
// directory: the default log file lives under the user's home.
func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case OutputStdout:
		return os.Stdout, noop, nil
	case OutputStderr, "":
		return os.Stderr, noop, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
