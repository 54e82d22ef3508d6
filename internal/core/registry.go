package core

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/install"
	"github.com/giantswarm/appenv/internal/netutil"
	"github.com/giantswarm/appenv/internal/process"
)

// Registry owns the instances of one test binary, keyed by name. It is
// safe for concurrent use by multiple goroutines.
//
// There is no process-wide registry: callers create one, typically in
// TestMain, and call StopAll when done.
type Registry struct {
	cfg     Config
	runner  process.Runner
	ports   *netutil.PortRegistry
	builtin *builtinTemplate

	mu        sync.Mutex
	instances map[string]*Instance
	order     []string

	// factsMu guards facts, the runtime facts detected on first use.
	factsMu sync.Mutex
	facts   *install.Facts
}

// NewRegistry creates a Registry whose commands run through runner, or
// through process.NewExec when runner is nil. This performs no I/O.
//
// Panics if cfg.Validate() reports any errors. Invalid configuration is a
// programmer error that should be caught at construction time.
func NewRegistry(cfg Config, runner process.Runner) *Registry {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("appenv: invalid registry config: %v", err))
	}
	cfg.BaseDir = mustAbs(cfg.BaseDir)
	cfg.TemplatesRoot = mustAbs(cfg.TemplatesRoot)

	if runner == nil {
		runner = process.NewExec(Logger())
	}

	r := &Registry{
		cfg:       cfg,
		runner:    runner,
		ports:     netutil.NewPortRegistry(cfg.Host, Logger()),
		instances: make(map[string]*Instance),
	}
	if cfg.BuiltinTemplate {
		r.builtin = &builtinTemplate{baseDir: cfg.BaseDir, cfg: cfg}
	}
	return r
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		panic(fmt.Sprintf("appenv: resolve %q: %v", p, err))
	}
	return abs
}

// Config returns the registry configuration with paths made absolute.
func (r *Registry) Config() Config { return r.cfg }

// Ensure returns the instance named by spec, creating it if needed. An
// existing instance is returned as is; the rest of spec is ignored then.
// Ensure performs no setup.
func (r *Registry) Ensure(spec Spec) (*Instance, error) {
	resolved, err := spec.resolve(r.cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[resolved.Name]; ok {
		return inst, nil
	}

	port, err := r.ports.Allocate(r.cfg.PortMin, r.cfg.PortMax)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", resolved.Name, err)
	}
	inst := newInstance(newInstanceParams{
		Config:  r.cfg,
		Spec:    resolved,
		Port:    port,
		Runner:  r.runner,
		Facts:   r.runtimeFacts,
		Builtin: r.builtin,
	})
	r.instances[resolved.Name] = inst
	r.order = append(r.order, resolved.Name)
	return inst, nil
}

// Start ensures the instance named by spec exists and starts it.
func (r *Registry) Start(ctx context.Context, spec Spec) (*Instance, error) {
	inst, err := r.Ensure(spec)
	if err != nil {
		return nil, err
	}
	if err := inst.Start(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// Get returns the instance called name.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Names returns the instance names in creation order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Current returns the only instance. With none or several it returns a
// *SelectionError wrapping ErrNoInstances or ErrAmbiguousInstance.
func (r *Registry) Current() (*Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch len(r.order) {
	case 0:
		return nil, &SelectionError{Err: ErrNoInstances}
	case 1:
		return r.instances[r.order[0]], nil
	default:
		return nil, &SelectionError{Names: slices.Clone(r.order), Err: ErrAmbiguousInstance}
	}
}

// StopAll stops every instance concurrently. Every instance is attempted;
// failures are collected into a *StopAllError. Instances stay registered,
// so a stopped instance can be started again.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	instances := make([]*Instance, 0, len(r.order))
	for _, name := range r.order {
		instances = append(instances, r.instances[name])
	}
	r.mu.Unlock()

	stopErrs := make([]error, len(instances))
	var wg sync.WaitGroup
	for idx, inst := range instances {
		wg.Add(1)
		go func(pos int, i *Instance) {
			defer wg.Done()
			stopErrs[pos] = i.Stop(ctx)
		}(idx, inst)
	}
	wg.Wait()

	var failures []StopFailure
	for idx, err := range stopErrs {
		if err != nil {
			failures = append(failures, StopFailure{Name: instances[idx].Name(), Err: err})
		}
	}
	if len(failures) > 0 {
		return &StopAllError{Failures: failures}
	}
	return nil
}

// runtimeFacts detects the runtime version and engine once. A failed
// detection is retried by the next caller.
func (r *Registry) runtimeFacts(ctx context.Context) (install.Facts, error) {
	r.factsMu.Lock()
	defer r.factsMu.Unlock()

	if r.facts != nil {
		return *r.facts, nil
	}
	args, err := expand(r.cfg.Toolchain.RuntimeFacts, nil)
	if err != nil {
		return install.Facts{}, err
	}
	if err := fileutil.EnsureDir(r.cfg.BaseDir); err != nil {
		return install.Facts{}, fmt.Errorf("create base directory: %w", err)
	}
	cmd := process.Command{Dir: r.cfg.BaseDir, Args: args, Scrub: r.cfg.Toolchain.Scrub}
	version, engine, err := install.DetectRuntime(ctx, r.runner, cmd)
	if err != nil {
		return install.Facts{}, err
	}
	Logger().Debug("detected runtime", "version", version, "engine", engine)
	r.facts = &install.Facts{RuntimeVersion: version, RuntimeEngine: engine}
	return *r.facts, nil
}
