package appenv

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/giantswarm/appenv/internal/core"
)

// Compile-time interface satisfaction checks.
var (
	_ Registry = (*registryWrapper)(nil)
	_ Server   = (*serverWrapper)(nil)
)

// registryWrapper wraps core.Registry to implement the Registry interface,
// returning Server values instead of *core.Instance.
//
// The core.Registry is stored as a named (unexported) field rather than
// embedded so callers cannot reach its internal methods through type
// assertions.
type registryWrapper struct {
	reg *core.Registry
}

// Ensure implements Registry.Ensure.
//
//nolint:ireturn // callers mock Server
func (w *registryWrapper) Ensure(spec Spec) (Server, error) {
	inst, err := w.reg.Ensure(spec.toCore())
	if err != nil {
		return nil, err
	}
	return &serverWrapper{inst: inst}, nil
}

// Start implements Registry.Start.
//
//nolint:ireturn // callers mock Server
func (w *registryWrapper) Start(ctx context.Context, spec Spec) (Server, error) {
	inst, err := w.reg.Start(ctx, spec.toCore())
	if err != nil {
		return nil, err
	}
	return &serverWrapper{inst: inst}, nil
}

// Get implements Registry.Get.
//
//nolint:ireturn // callers mock Server
func (w *registryWrapper) Get(name string) (Server, bool) {
	inst, ok := w.reg.Get(name)
	if !ok {
		return nil, false
	}
	return &serverWrapper{inst: inst}, true
}

// Names wraps core.Registry.Names.
func (w *registryWrapper) Names() []string {
	return w.reg.Names()
}

// Current implements Registry.Current.
//
//nolint:ireturn // callers mock Server
func (w *registryWrapper) Current() (Server, error) {
	inst, err := w.reg.Current()
	if err != nil {
		return nil, err
	}
	return &serverWrapper{inst: inst}, nil
}

// StopAll wraps core.Registry.StopAll.
func (w *registryWrapper) StopAll(ctx context.Context) error {
	return w.reg.StopAll(ctx)
}

// serverWrapper wraps core.Instance to implement the Server interface.
// Two wrappers of one instance share all state; the wrapper itself holds
// none.
type serverWrapper struct {
	inst *core.Instance
}

func (w *serverWrapper) Name() string           { return w.inst.Name() }
func (w *serverWrapper) Root() string           { return w.inst.Root() }
func (w *serverWrapper) Port() int              { return w.inst.Port() }
func (w *serverWrapper) PID() int               { return w.inst.PID() }
func (w *serverWrapper) State() State           { return w.inst.State() }
func (w *serverWrapper) Version() string        { return w.inst.Version() }
func (w *serverWrapper) Environment() string    { return w.inst.Environment() }
func (w *serverWrapper) ActualVersion() string  { return w.inst.ActualVersion() }
func (w *serverWrapper) RuntimeVersion() string { return w.inst.RuntimeVersion() }
func (w *serverWrapper) RuntimeEngine() string  { return w.inst.RuntimeEngine() }
func (w *serverWrapper) LogPath() string        { return w.inst.LogPath() }
func (w *serverWrapper) MailDir() string        { return w.inst.MailDir() }
func (w *serverWrapper) Path(sub string) string { return w.inst.Path(sub) }

func (w *serverWrapper) Setup(ctx context.Context) error { return w.inst.Setup(ctx) }
func (w *serverWrapper) Start(ctx context.Context) error { return w.inst.Start(ctx) }
func (w *serverWrapper) Stop(ctx context.Context) error  { return w.inst.Stop(ctx) }

func (w *serverWrapper) RunCommand(ctx context.Context, command string) (string, error) {
	return w.inst.RunCommand(ctx, command)
}

func (w *serverWrapper) URL(sub string, query url.Values) (string, error) {
	return w.inst.Client().URL(w.inst.Path(sub), query)
}

func (w *serverWrapper) Get(ctx context.Context, sub string, query url.Values) (string, error) {
	return w.inst.Get(ctx, sub, query)
}

func (w *serverWrapper) Post(ctx context.Context, sub string, form url.Values) (*Response, error) {
	return w.inst.Post(ctx, sub, form)
}

func (w *serverWrapper) Do(ctx context.Context, req Request) (*Response, error) {
	return w.inst.Do(ctx, req)
}

func (w *serverWrapper) Mail(address string) (*Message, error) { return w.inst.Mail(address) }
func (w *serverWrapper) ClearMail() error                      { return w.inst.ClearMail() }

// defaultRegistryConfig returns a registryConfig populated with all default
// values. Both NewRegistry and test helpers use this to avoid duplicating
// the default field assignments.
func defaultRegistryConfig() registryConfig {
	return registryConfig{core.Config{
		BaseDir:         filepath.Join(os.TempDir(), DefaultBaseDirName),
		TemplatesRoot:   ".",
		BuiltinTemplate: true,
		DefaultVersion:  DefaultVersion,
		Host:            DefaultHost,
		PortMin:         DefaultPortMin,
		PortMax:         DefaultPortMax,
		PollInterval:    DefaultPollInterval,
		PIDTimeout:      DefaultPIDTimeout,
		VerifyTimeout:   DefaultVerifyTimeout,
		StopTimeout:     DefaultStopTimeout,
		LockTimeout:     DefaultLockTimeout,
		SetupTimeout:    DefaultSetupTimeout,
		LogLines:        DefaultLogLines,
		FetchRetries:    DefaultFetchRetries,
		Toolchain:       core.DefaultToolchain(),
	}}
}

// NewRegistry returns a new Registry configured by opts. This performs no
// I/O operations; workspaces are created by Setup or Start.
//
// There is no process-wide registry: create one per test binary, typically
// in TestMain, and call StopAll before exiting.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // callers mock Registry
func NewRegistry(opts ...Option) Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &registryWrapper{reg: core.NewRegistry(cfg.toCoreConfig(), nil)}
}
