// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process logger. Informational lines go to one
// stream and warnings and errors to another, so error output can be captured
// separately from progress.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options describes logger construction parameters.
type Options struct {
	// Verbose enables informational lines. Warnings and errors are always written.
	Verbose bool

	// Debug lowers the level further, for troubleshooting.
	Debug bool

	// Format is "text" (default) or "json".
	Format string

	// Out receives debug and info lines (default os.Stdout).
	Out io.Writer

	// Err receives warnings and errors (default os.Stderr).
	Err io.Writer
}

// New constructs a slog logger using the provided options.
func New(opts Options) *slog.Logger {
	out, errOut := opts.Out, opts.Err
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: Level(opts.Verbose, opts.Debug)}
	var infoH, errH slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		infoH = slog.NewJSONHandler(out, hopts)
		errH = slog.NewJSONHandler(errOut, hopts)
	} else {
		infoH = slog.NewTextHandler(out, hopts)
		errH = slog.NewTextHandler(errOut, hopts)
	}
	return slog.New(&splitHandler{info: infoH, err: errH})
}

// Level maps the verbosity flags to a minimum level.
func Level(verbose, debug bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// splitHandler routes records at Warn and above to err, the rest to info.
type splitHandler struct {
	info slog.Handler
	err  slog.Handler
}

func (h *splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelWarn {
		return h.err.Enabled(ctx, level)
	}
	return h.info.Enabled(ctx, level)
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.err.Handle(ctx, r)
	}
	return h.info.Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{info: h.info.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{info: h.info.WithGroup(name), err: h.err.WithGroup(name)}
}
