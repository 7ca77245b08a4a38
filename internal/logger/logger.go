// Package logger provides the structured logging ambient stack shared by
// the master, client and worker roles, and the log-redirection helper used
// when a ProcessSpec names a "logs" file for its child's stdout/stderr.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters, matching provisr's logger defaults.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config controls where a role's own logs go: stderr with ANSI color when
// Dir is empty (interactive use), or a rotated file under Dir otherwise.
type Config struct {
	Dir        string
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a *slog.Logger for the given role ("master", "client", "worker"),
// tagged with that role so multiplexed log output can be attributed.
func New(role string, cfg Config) *slog.Logger {
	var w io.Writer
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Dir == "" {
		w = os.Stderr
		if isTTY(os.Stderr) {
			handler = NewColorTextHandler(w, opts, true)
		} else {
			handler = slog.NewTextHandler(w, opts)
		}
	} else {
		_ = os.MkdirAll(cfg.Dir, 0o750)
		w = &lj.Logger{
			Filename:   filepath.Join(cfg.Dir, role+".log"),
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("role", role))
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// RedirectConfig describes where a managed child's stdout/stderr are
// redirected to, from ProcessSpec.Logs. A single combined file receives
// both streams, matching spec.md §3's single "logs" path field.
type RedirectConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Writer returns an io.WriteCloser for the child's combined stdout/stderr,
// or nil if no redirection was configured.
func (c RedirectConfig) Writer() io.WriteCloser {
	if c.Path == "" {
		return nil
	}
	_ = os.MkdirAll(filepath.Dir(c.Path), 0o750)
	return &lj.Logger{
		Filename:   c.Path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}
