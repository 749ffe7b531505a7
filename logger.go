package deskpad

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that SetLogger
// can run while an export is logging from its worker goroutines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by deskpad and its sub-packages.
// By default deskpad produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by deskpad:
//   - [slog.LevelDebug]: per-object reconstruction details, sizing inputs
//   - [slog.LevelInfo]: export lifecycle (canvas size, object counts, artifact)
//   - [slog.LevelWarn]: fallbacks to proxy rasters and dropped objects
//
// Example:
//
//	deskpad.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. The server package calls this so that
// HTTP handlers share the library's logging configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
