package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/shlex"

	"github.com/giantswarm/appenv/internal/client"
	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/install"
	"github.com/giantswarm/appenv/internal/mailbox"
	"github.com/giantswarm/appenv/internal/manifest"
	"github.com/giantswarm/appenv/internal/overlay"
	"github.com/giantswarm/appenv/internal/probe"
	"github.com/giantswarm/appenv/internal/process"
)

// Install step names. Each runs with network access only until it first
// succeeds.
const (
	stepBootstrap = "bootstrap"
	stepPrimary   = "primary"
)

// factsFunc reports the runtime facts shared by all instances of a Registry.
type factsFunc func(ctx context.Context) (install.Facts, error)

// Instance is one application server and its workspace.
//
// Synchronization strategy:
//   - state, pid and banner use atomics so accessors never block behind a
//     long setup or start.
//   - spawned is only accessed under startMu, which serializes Setup, Start,
//     Stop and the transitions they make.
type Instance struct {
	cfg  Config
	spec Spec

	root   string
	parent string
	port   int

	runner    process.Runner
	installer *install.Installer
	facts     factsFunc
	builtin   *builtinTemplate
	http      *client.Client

	state  atomic.Uint32
	pid    atomic.Int64
	banner atomic.Pointer[probe.Banner]

	startMu sync.Mutex
	spawned *process.Spawned

	log *slog.Logger
}

// newInstanceParams holds everything a Registry hands to a new Instance.
type newInstanceParams struct {
	Config  Config
	Spec    Spec // already resolved
	Port    int
	Runner  process.Runner
	Facts   factsFunc
	Builtin *builtinTemplate
}

func newInstance(p newInstanceParams) *Instance {
	root := filepath.Join(p.Config.BaseDir, versionTag(p.Spec.Version), p.Spec.Name)
	log := Logger().With("name", p.Spec.Name, "port", p.Port)
	tc := p.Config.Toolchain

	inst := &Instance{
		cfg:     p.Config,
		spec:    p.Spec,
		root:    root,
		parent:  filepath.Dir(root),
		port:    p.Port,
		runner:  p.Runner,
		facts:   p.Facts,
		builtin: p.Builtin,
		http:    &client.Client{Host: p.Config.Host, Port: p.Port, Log: log},
		log:     log,
	}
	installArgs, err := shlex.Split(tc.Install)
	if err != nil {
		// Toolchain.Validate already parsed it.
		panic(fmt.Sprintf("appenv: invalid install command: %v", err))
	}
	inst.installer = install.New(install.Config{
		Command:      installArgs,
		LocalFlag:    tc.LocalFlag,
		Env:          inst.env(),
		Scrub:        tc.Scrub,
		FetchRetries: p.Config.FetchRetries,
	}, p.Runner, log)
	return inst
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.spec.Name }

// Root returns the workspace directory.
func (i *Instance) Root() string { return i.root }

// Port returns the port the server listens on. It never changes.
func (i *Instance) Port() int { return i.port }

// PID returns the server process id, or 0 when no server is running.
func (i *Instance) PID() int { return int(i.pid.Load()) }

// State returns the current lifecycle state.
func (i *Instance) State() State { return State(i.state.Load()) }

// Version returns the requested framework version, or DefaultVersion.
func (i *Instance) Version() string {
	return versionTag(i.spec.Version)
}

// Environment returns the runtime environment the server runs in.
func (i *Instance) Environment() string { return i.spec.Environment }

// Templates returns the resolved template directories of the spec.
func (i *Instance) Templates() []string { return append([]string(nil), i.spec.Templates...) }

// Banner returns what the server reported during its last verification.
// ok is false if the server has never been verified.
func (i *Instance) Banner() (b probe.Banner, ok bool) {
	if p := i.banner.Load(); p != nil {
		return *p, true
	}
	return probe.Banner{}, false
}

// ActualVersion returns the framework version the server reported, or "".
func (i *Instance) ActualVersion() string {
	b, _ := i.Banner()
	return b.FrameworkVersion
}

// RuntimeVersion returns the runtime version the server reported, or "".
func (i *Instance) RuntimeVersion() string {
	b, _ := i.Banner()
	return b.RuntimeVersion
}

// RuntimeEngine returns the runtime engine the server reported, or "".
func (i *Instance) RuntimeEngine() string {
	b, _ := i.Banner()
	return b.RuntimeEngine
}

// LogPath returns the file receiving the server's combined output.
func (i *Instance) LogPath() string {
	return filepath.Join(i.root, filepath.FromSlash(i.cfg.Toolchain.LogFile))
}

// PIDFilePath returns the file the server writes its process id to.
func (i *Instance) PIDFilePath() string {
	return filepath.Join(i.root, filepath.FromSlash(i.cfg.Toolchain.PIDFile))
}

// MailDir returns the directory the application delivers mail into.
func (i *Instance) MailDir() string {
	return filepath.Join(i.root, filepath.FromSlash(i.cfg.Toolchain.MailDir))
}

func (i *Instance) setState(s State) {
	old := State(i.state.Swap(uint32(s)))
	if old != s {
		i.log.Debug("state transition", "from", old, "to", s)
	}
}

// env returns the variables every command of this instance runs with.
func (i *Instance) env() []string {
	return []string{i.cfg.Toolchain.EnvVar + "=" + i.spec.Environment}
}

func (i *Instance) command(dir string, args []string) process.Command {
	return process.Command{Dir: dir, Args: args, Env: i.env(), Scrub: i.cfg.Toolchain.Scrub}
}

// Setup prepares the workspace: directories, dependencies and template
// files. It is a no-op once those are done, and resumes after the last
// completed step when a previous call failed.
func (i *Instance) Setup(ctx context.Context) error {
	i.startMu.Lock()
	defer i.startMu.Unlock()
	return i.setup(ctx)
}

func (i *Instance) setup(ctx context.Context) error {
	if i.State().setUp() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.SetupTimeout)
	defer cancel()

	lock, err := acquireDirLock(ctx, i.parent, i.cfg.LockTimeout)
	if err != nil {
		return fmt.Errorf("setup %s: %w", i.Name(), err)
	}
	defer releaseFileLock(i.log, lock)

	start := time.Now()
	i.log.Info("setting up workspace", "root", i.root)

	if i.State() == StateFresh {
		if err := i.prepareDirectories(ctx); err != nil {
			return fmt.Errorf("setup %s: %w", i.Name(), err)
		}
		i.setState(StateDirectoriesPrepared)
	}
	if i.State() == StateDirectoriesPrepared {
		if err := i.installDependencies(ctx); err != nil {
			return fmt.Errorf("setup %s: %w", i.Name(), err)
		}
		i.setState(StateDependenciesInstalled)
	}
	if i.State() == StateDependenciesInstalled {
		if err := i.overlayTemplates(ctx); err != nil {
			return fmt.Errorf("setup %s: %w", i.Name(), err)
		}
		i.setState(StateTemplateFilesOverlaid)
	}

	i.log.Info("workspace ready", "root", i.root, "elapsed", time.Since(start))
	return nil
}

// sources returns every template directory in overlay order.
func (i *Instance) sources(ctx context.Context) ([]string, error) {
	var out []string
	if i.builtin != nil {
		dir, err := i.builtin.Path(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, dir)
	}
	out = append(out, i.cfg.BaseTemplates...)
	return append(out, i.spec.Templates...), nil
}

func (i *Instance) prepareDirectories(ctx context.Context) error {
	sources, err := i.sources(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := fileutil.RequireDir(src); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrTemplateNotFound, src, err)
		}
	}
	if err := fileutil.RecreateDir(i.root); err != nil {
		return fmt.Errorf("recreate workspace: %w", err)
	}
	return nil
}

func (i *Instance) installDependencies(ctx context.Context) error {
	facts, err := i.facts(ctx)
	if err != nil {
		return err
	}
	facts.TargetVersion = i.spec.Version
	tc := i.cfg.Toolchain

	// Bootstrap: a manifest holding only the framework, so the scaffold runs
	// with exactly the requested version.
	boot := manifest.New("")
	var pin []string
	if i.spec.Version != "" {
		pin = append(pin, "= "+i.spec.Version)
	}
	if err := boot.Require(tc.FrameworkDependency, pin...); err != nil {
		return err
	}
	if _, err := install.Apply(boot, install.Rules, facts, install.StageBootstrap); err != nil {
		return err
	}
	if err := boot.Write(filepath.Join(i.parent, tc.Manifest)); err != nil {
		return err
	}
	if err := i.installer.Install(ctx, stepBootstrap, i.parent); err != nil {
		return err
	}

	args, err := expand(tc.Scaffold, map[string]string{
		PlaceholderVersionFlag: tc.versionFlag(i.spec.Version),
		PlaceholderName:        filepath.Base(i.root),
	})
	if err != nil {
		return err
	}
	i.log.Info("scaffolding application", "command", args)
	if _, err := i.runner.Run(ctx, i.command(i.parent, args)); err != nil {
		return fmt.Errorf("scaffold: %w", err)
	}

	if err := i.updateManifest(facts); err != nil {
		return err
	}
	return i.installer.Install(ctx, stepPrimary, i.root)
}

func (i *Instance) updateManifest(facts install.Facts) error {
	path := filepath.Join(i.root, i.cfg.Toolchain.Manifest)
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	applied, err := install.Apply(m, install.Rules, facts, install.StageBootstrap, install.StageApplication)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		i.log.Debug("applied compatibility rules", "rules", applied)
	}
	for _, l := range i.cfg.ExtraManifestLines {
		m.AddLine(l)
	}
	for _, l := range i.spec.ManifestLines {
		m.AddLine(l)
	}
	if i.spec.Modifier != nil {
		if err := i.spec.Modifier(m); err != nil {
			return fmt.Errorf("manifest modifier: %w", err)
		}
	}
	return m.Write(path)
}

func (i *Instance) overlayTemplates(ctx context.Context) error {
	sources, err := i.sources(ctx)
	if err != nil {
		return err
	}
	plan, err := overlay.Apply(ctx, sources, i.root)
	if err != nil {
		return err
	}
	i.log.Debug("templates overlaid", "files", len(plan.Entries), "sources", len(sources))
	return nil
}

// Start sets the workspace up if needed, spawns the server and verifies it.
// It is a no-op while a server process is recorded. If verification fails
// the server is stopped again before Start returns.
func (i *Instance) Start(ctx context.Context) error {
	i.startMu.Lock()
	defer i.startMu.Unlock()

	if err := i.setup(ctx); err != nil {
		return err
	}
	if i.PID() != 0 {
		return nil
	}

	if err := i.spawn(ctx); err != nil {
		return fmt.Errorf("start %s: %w", i.Name(), err)
	}
	if err := i.verify(ctx); err != nil {
		i.log.Warn("server verification failed; stopping it", "error", err)
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.StopTimeout+time.Second)
		defer cancel()
		if stopErr := i.stop(stopCtx); stopErr != nil {
			i.log.Warn("failed to stop server after verification failure; it may be left running",
				"pid", i.PID(), "error", stopErr)
		}
		return fmt.Errorf("start %s: %w", i.Name(), err)
	}
	return nil
}

// spawn launches the server and waits for its PID file.
func (i *Instance) spawn(ctx context.Context) error {
	tc := i.cfg.Toolchain
	pidPath := i.PIDFilePath()
	logPath := i.LogPath()

	// A PID file left by a killed server would be read back immediately.
	for _, stale := range []string{pidPath, logPath} {
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", stale, err)
		}
	}

	args, err := expand(tc.Server, map[string]string{PlaceholderPort: strconv.Itoa(i.port)})
	if err != nil {
		return err
	}
	i.log.Info("starting server", "command", args, "log", logPath)
	spawned, err := i.runner.Start(i.command(i.root, args), logPath)
	if err != nil {
		return err
	}
	i.spawned = spawned

	start := time.Now()
	var pid int
	err = process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      i.cfg.PollInterval,
		Timeout:       i.cfg.PIDTimeout,
		Immediate:     true,
		Name:          "server pid file",
		Port:          i.port,
		Logger:        i.log,
		ProcessExited: spawned.Exited(),
	}, func(context.Context, int) (bool, error) {
		p, err := process.ReadPIDFile(pidPath)
		if err != nil {
			// Missing, or not fully written yet.
			return false, nil
		}
		pid = p
		return true, nil
	})
	if err != nil {
		elapsed := time.Since(start)
		if stopErr := process.Release(&i.spawned, i.cfg.StopTimeout); stopErr != nil {
			i.log.Warn("failed to stop server command", "error", stopErr)
		}
		if errors.Is(err, process.ErrProcessExited) {
			return i.startupError(elapsed, err)
		}
		return &TimeoutError{Op: "start server", Elapsed: elapsed, Path: pidPath, Err: err}
	}

	i.pid.Store(int64(pid))
	i.banner.Store(nil)
	i.setState(StateStarted)
	i.log.Debug("server wrote pid file", "pid", pid, "elapsed", time.Since(start))
	return nil
}

// verify polls the status endpoint and checks the reported version.
func (i *Instance) verify(ctx context.Context) error {
	tc := i.cfg.Toolchain
	statusURL, err := i.http.URL(tc.StatusPath, nil)
	if err != nil {
		return err
	}

	// Only the process we spawned can be watched for exit; a toolchain
	// that daemonizes leaves a different pid in the PID file.
	var exited <-chan struct{}
	if i.spawned != nil && i.spawned.Pid() == i.PID() {
		exited = i.spawned.Exited()
	}

	start := time.Now()
	p := &probe.Probe{
		URL:      statusURL,
		Parser:   probe.NewBannerParser(tc.FrameworkName, tc.RuntimeName),
		Interval: i.cfg.PollInterval,
		Timeout:  i.cfg.VerifyTimeout,
		Logger:   i.log,
		Exited:   exited,
	}
	banner, err := p.Run(ctx)
	if err != nil {
		return i.startupError(time.Since(start), err)
	}
	if i.spec.Version != "" && banner.FrameworkVersion != i.spec.Version {
		return &VersionMismatchError{Want: i.spec.Version, Got: banner.FrameworkVersion}
	}

	i.banner.Store(&banner)
	i.setState(StateVerified)
	i.log.Info("server running",
		"framework_version", banner.FrameworkVersion,
		"runtime_version", banner.RuntimeVersion,
		"runtime_engine", banner.RuntimeEngine,
		"pid", i.PID())
	return nil
}

// startupError wraps cause with the tail of the server log, if readable.
func (i *Instance) startupError(elapsed time.Duration, cause error) *StartupError {
	e := &StartupError{Elapsed: elapsed, Cause: cause}
	lines, err := probe.TailLines(i.LogPath(), i.cfg.LogLines)
	if err != nil {
		i.log.Debug("no server log excerpt", "error", err)
		return e
	}
	e.LogPath = i.LogPath()
	e.LastLines = lines
	return e
}

// Stop kills the server and waits for it to disappear. It is a no-op when
// no server is running. If the process survives, the error wraps
// ErrProcessSurvived and the pid stays recorded.
func (i *Instance) Stop(ctx context.Context) error {
	i.startMu.Lock()
	defer i.startMu.Unlock()
	return i.stop(ctx)
}

func (i *Instance) stop(ctx context.Context) error {
	pid := i.PID()
	if pid == 0 {
		return nil
	}

	// The server is killed outright: nothing it holds is needed any more,
	// and some runtimes ignore SIGTERM.
	if err := process.Kill(pid); err != nil {
		return fmt.Errorf("stop %s: %w", i.Name(), err)
	}
	if err := process.WaitExit(ctx, pid, i.cfg.PollInterval, i.cfg.StopTimeout); err != nil {
		if errors.Is(err, process.ErrStillRunning) {
			return fmt.Errorf("stop %s: %w: %w", i.Name(), ErrProcessSurvived, err)
		}
		return fmt.Errorf("stop %s: %w", i.Name(), err)
	}

	i.pid.Store(0)
	if err := process.Release(&i.spawned, i.cfg.StopTimeout); err != nil {
		i.log.Warn("failed to reap server command", "error", err)
	}
	i.setState(StateStopped)
	i.log.Info("server stopped", "pid", pid)
	return nil
}

// RunCommand runs command, prefixed with the toolchain's exec command, in
// the workspace and returns its combined output.
func (i *Instance) RunCommand(ctx context.Context, command string) (string, error) {
	args, err := expand(i.cfg.Toolchain.Exec+" "+command, nil)
	if err != nil {
		return "", err
	}
	return i.runner.Run(ctx, i.command(i.root, args))
}

// Path returns sub prefixed with the instance name, the layout templates
// use for their routes.
func (i *Instance) Path(sub string) string {
	return i.Name() + "/" + sub
}

// Client returns an HTTP client for the server. Its paths are relative to
// the server root, not prefixed with the instance name.
func (i *Instance) Client() *client.Client { return i.http }

// Get fetches Path(sub) and returns the trimmed body.
func (i *Instance) Get(ctx context.Context, sub string, query url.Values) (string, error) {
	return i.http.Get(ctx, i.Path(sub), query)
}

// Post submits form to Path(sub).
func (i *Instance) Post(ctx context.Context, sub string, form url.Values) (*client.Response, error) {
	return i.http.Post(ctx, i.Path(sub), form)
}

// Do sends req with its path prefixed by the instance name.
func (i *Instance) Do(ctx context.Context, req client.Request) (*client.Response, error) {
	req.Path = i.Path(req.Path)
	return i.http.Do(ctx, req)
}

// Mail returns the mail the application delivered to address.
func (i *Instance) Mail(address string) (*mailbox.Message, error) {
	return mailbox.Read(i.MailDir(), address)
}

// ClearMail deletes all delivered mail.
func (i *Instance) ClearMail() error {
	return mailbox.Clear(i.MailDir())
}
