package appenv

import (
	"log/slog"

	"github.com/giantswarm/appenv/internal/core"
)

// SetLogger routes appenv's logging to l. Every record from a server carries
// its "name" and "port"; anything else, such as a component attribute, is
// up to l.
//
// Passing nil restores the default, slog.Default() with component=appenv.
// Call SetLogger(nil) after slog.SetDefault to pick the new default up.
//
// Servers keep the logger that was current when Ensure created them, so
// set it before creating the Registry, typically in TestMain:
//
//	appenv.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
