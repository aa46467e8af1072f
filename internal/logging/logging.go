// Package logging builds the slog logger used by the cmdguard commands.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrianpk/cmdguard/internal/config"
)

const (
	logDirPerm  os.FileMode = 0o750
	logFilePerm os.FileMode = 0o600
)

// Setup builds a logger from cfg. Records go to the configured file and, when
// console is not nil, to console as text. With neither, records are dropped.
// The returned close function releases the log file.
func Setup(cfg config.LogConfig, console io.Writer) (*slog.Logger, func() error, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, opts))
	}

	closer := func() error { return nil }
	if cfg.File != "" {
		f, err := openLogFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		closer = f.Close

		hostname, _ := os.Hostname()
		handler := newHandler(f, cfg.Format, opts).WithAttrs([]slog.Attr{
			slog.String("hostname", hostname),
			slog.Int("pid", os.Getpid()),
		})
		handlers = append(handlers, handler)
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, opts)), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(NewMultiHandler(handlers...)), closer, nil
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, config.FormatJSON) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// MultiHandler is a slog.Handler that dispatches log records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a new MultiHandler that wraps the given handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled reports whether at least one of the underlying handlers is enabled.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every enabled handler.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a new MultiHandler whose handlers have the given attributes.
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup returns a new MultiHandler whose handlers have the given group name.
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
