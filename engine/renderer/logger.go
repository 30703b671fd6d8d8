package renderer

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by the renderer and the devices it creates.
// By default the renderer produces no log output; pass nil to restore that.
//
// Log levels used:
//   - slog.LevelDebug: program compilation, surface configuration, resource creation
//   - slog.LevelInfo: adapter selection and backend startup
//   - slog.LevelWarn: non-fatal issues such as skipped shader validation
//
// Parameters:
//   - l: the logger to use, or nil to discard output
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current renderer logger. It is safe for concurrent use.
//
// Returns:
//   - *slog.Logger: the active logger
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
