package appenv

import (
	"context"
	"net/url"
)

// Registry owns the application servers of one test binary, keyed by name.
//
// Callers must follow this lifecycle ordering:
//
//	NewRegistry → Ensure/Start (repeatable) → StopAll
//
// StopAll leaves every server registered, so a later Start boots it again
// on the same port without repeating setup.
type Registry interface {
	// Ensure returns the server named by spec, registering it if needed.
	// For a name already registered the rest of spec is ignored. Ensure
	// performs no I/O beyond choosing a free port.
	Ensure(spec Spec) (Server, error)

	// Start ensures the server exists, sets its workspace up on first use
	// and starts it unless it is already running.
	Start(ctx context.Context, spec Spec) (Server, error)

	// Get returns the server called name.
	Get(name string) (Server, bool)

	// Names returns the registered names in registration order.
	Names() []string

	// Current returns the only registered server. With none or several it
	// returns a *SelectionError matching ErrNoInstances or
	// ErrAmbiguousInstance.
	Current() (Server, error)

	// StopAll stops every running server. Every server is attempted; the
	// failures are reported together in a *StopAllError.
	StopAll(ctx context.Context) error
}

// Server is one application server and its workspace.
type Server interface {
	// Name identifies the server. Its HTTP paths are prefixed with it.
	Name() string
	// Root is the workspace directory.
	Root() string
	// Port never changes, including across restarts.
	Port() int
	// PID is the server process id, or 0 when it is not running.
	PID() int
	State() State

	// Version is the requested framework version, or DefaultVersion.
	Version() string
	Environment() string
	// ActualVersion, RuntimeVersion and RuntimeEngine are what the server
	// reported when it was last verified, or "".
	ActualVersion() string
	RuntimeVersion() string
	RuntimeEngine() string

	// LogPath is the file holding the server's combined output.
	LogPath() string
	// MailDir is where the application delivers mail.
	MailDir() string

	// Setup prepares the workspace. It is a no-op after the first success.
	Setup(ctx context.Context) error
	// Start sets up, spawns and verifies the server. It is a no-op while
	// the server runs. On a failed verification the server is stopped
	// before Start returns.
	Start(ctx context.Context) error
	// Stop kills the server and waits for it to exit.
	Stop(ctx context.Context) error

	// RunCommand runs command through the toolchain's exec prefix in the
	// workspace and returns its combined output.
	RunCommand(ctx context.Context, command string) (string, error)

	// Path returns sub prefixed with the server name.
	Path(sub string) string
	// URL returns the absolute URL of Path(sub).
	URL(sub string, query url.Values) (string, error)
	// Get fetches Path(sub) and returns the body with surrounding
	// whitespace removed. A non-200 response is a *StatusError.
	Get(ctx context.Context, sub string, query url.Values) (string, error)
	// Post submits form to Path(sub).
	Post(ctx context.Context, sub string, form url.Values) (*Response, error)
	// Do sends req with its path prefixed by the server name.
	Do(ctx context.Context, req Request) (*Response, error)

	// Mail returns the last mail delivered to address.
	Mail(address string) (*Message, error)
	// ClearMail deletes all delivered mail.
	ClearMail() error
}
