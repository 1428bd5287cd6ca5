package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi creates a *slog.Logger that duplicates every record to all given
// loggers. The tail command uses it to write pretty output to the terminal
// and a JSON record to .unistream/tail.log in one call.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	handlers := make([]slog.Handler, len(loggers))
	for i, l := range loggers {
		handlers[i] = l.Handler()
	}
	return slog.New(fanoutHandler{handlers: handlers})
}

type fanoutHandler struct {
	handlers []slog.Handler
}

// Enabled reports true when any underlying handler would accept the level,
// so a debug-level file sink keeps records flowing even when the terminal
// sink is at info.
func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		// Each handler gets its own copy; records are not safe to share.
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		children[i] = h.WithAttrs(attrs)
	}
	return fanoutHandler{handlers: children}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	children := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		children[i] = h.WithGroup(name)
	}
	return fanoutHandler{handlers: children}
}
