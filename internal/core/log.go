package core

import (
	"log/slog"
	"sync/atomic"
)

// logger holds the logger set through SetLogger. Nil means the default.
var logger atomic.Pointer[slog.Logger]

// fallback caches the default logger so every call does not rebuild it.
// SetLogger clears it, which is how a later slog.SetDefault is picked up.
var fallback atomic.Pointer[slog.Logger]

// Logger returns the logger appenv writes to: the one passed to SetLogger,
// or slog.Default() tagged with component=appenv. Safe for concurrent use.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := fallback.Load(); l != nil {
		return l
	}
	l := slog.Default().With("component", "appenv")
	if !fallback.CompareAndSwap(nil, l) {
		if cached := fallback.Load(); cached != nil {
			return cached
		}
	}
	return l
}

// SetLogger replaces the logger. Nil restores the default, re-derived from
// slog.Default() on the next Logger call. Instances keep the logger they
// were created with.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	fallback.Store(nil)
}
