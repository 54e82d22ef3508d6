package appenv

import (
	"fmt"
	"path/filepath"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("appenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("appenv: %s must not be empty", name))
	}
}

// Option configures a Registry during construction via NewRegistry.
// Each With* function returns an Option that sets a specific field.
//
// Several With* functions panic on invalid input (empty paths, non-positive
// durations, inverted ranges). These panics are intentional: option values
// are typically compile-time constants or package-level variables, so an
// invalid value indicates a programmer error rather than a runtime
// condition. The pattern mirrors [regexp.MustCompile].
type Option func(*registryConfig)

// WithBaseDir sets the directory holding all workspaces, one subdirectory
// per framework version.
//
// Default: filepath.Join(os.TempDir(), DefaultBaseDirName).
//
// Panics if dir is empty.
func WithBaseDir(dir string) Option {
	requireNonEmpty("base directory", dir)
	return func(c *registryConfig) {
		c.BaseDir = dir
	}
}

// WithTemplatesRoot sets the directory relative template names in a Spec
// resolve under.
//
// Default: the working directory.
//
// Panics if dir is empty.
func WithTemplatesRoot(dir string) Option {
	requireNonEmpty("templates root", dir)
	return func(c *registryConfig) {
		c.TemplatesRoot = dir
	}
}

// WithBaseTemplates sets template directories overlaid before the templates
// of every Spec. Relative paths are made absolute against the working
// directory.
//
// Panics if a directory is empty.
func WithBaseTemplates(dirs ...string) Option {
	abs := make([]string, len(dirs))
	for i, d := range dirs {
		requireNonEmpty("base template", d)
		a, err := filepath.Abs(d)
		if err != nil {
			panic(fmt.Sprintf("appenv: base template %q: %v", d, err))
		}
		abs[i] = a
	}
	return func(c *registryConfig) {
		c.BaseTemplates = abs
	}
}

// WithImplicitTemplates sets template names put in front of the templates
// of every Spec. They resolve like the Spec's own.
//
// Panics if a name is empty.
func WithImplicitTemplates(names ...string) Option {
	for _, n := range names {
		requireNonEmpty("implicit template", n)
	}
	names = append([]string(nil), names...)
	return func(c *registryConfig) {
		c.ImplicitTemplates = names
	}
}

// WithBuiltinTemplate controls whether the embedded template providing the
// status endpoint is overlaid first. Disable it when the caller's templates
// provide the endpoint themselves.
//
// Default: true.
func WithBuiltinTemplate(enabled bool) Option {
	return func(c *registryConfig) {
		c.BuiltinTemplate = enabled
	}
}

// WithDefaultVersion sets the framework version of specs that leave
// Version empty. DefaultVersion means whatever the toolchain installs.
//
// Default: DefaultVersion.
//
// Panics if version is empty.
func WithDefaultVersion(version string) Option {
	requireNonEmpty("default version", version)
	return func(c *registryConfig) {
		c.DefaultVersion = version
	}
}

// WithExtraManifestLines sets lines appended verbatim to every application
// manifest, before the lines of the Spec.
func WithExtraManifestLines(lines ...string) Option {
	lines = append([]string(nil), lines...)
	return func(c *registryConfig) {
		c.ExtraManifestLines = lines
	}
}

// WithHost sets the address servers are reached on.
//
// Default: DefaultHost.
//
// Panics if host is empty.
func WithHost(host string) Option {
	requireNonEmpty("host", host)
	return func(c *registryConfig) {
		c.Host = host
	}
}

// WithPortRange sets the range ports are picked from, lo inclusive and hi
// exclusive.
//
// Default: [DefaultPortMin, DefaultPortMax).
//
// Panics unless 0 < lo < hi <= 65536.
func WithPortRange(lo, hi int) Option {
	if lo <= 0 || hi > 65536 || lo >= hi {
		panic(fmt.Sprintf("appenv: port range [%d, %d) is invalid", lo, hi))
	}
	return func(c *registryConfig) {
		c.PortMin = lo
		c.PortMax = hi
	}
}

// WithPollInterval sets how often the PID file, the status endpoint and a
// stopping process are checked.
//
// Default: 100 milliseconds.
//
// Panics if d <= 0.
func WithPollInterval(d time.Duration) Option {
	requirePositive("poll interval", d)
	return func(c *registryConfig) {
		c.PollInterval = d
	}
}

// WithPIDTimeout sets how long a spawned server has to write its PID file.
//
// Default: 30 seconds.
//
// Panics if d <= 0.
func WithPIDTimeout(d time.Duration) Option {
	requirePositive("pid timeout", d)
	return func(c *registryConfig) {
		c.PIDTimeout = d
	}
}

// WithVerifyTimeout sets how long a server has to answer its status
// endpoint with the expected banner.
//
// Default: 20 seconds.
//
// Panics if d <= 0.
func WithVerifyTimeout(d time.Duration) Option {
	requirePositive("verify timeout", d)
	return func(c *registryConfig) {
		c.VerifyTimeout = d
	}
}

// WithStopTimeout sets how long a killed server has to disappear before
// Stop fails with ErrProcessSurvived.
//
// Default: 20 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *registryConfig) {
		c.StopTimeout = d
	}
}

// WithLockTimeout sets how long Setup waits for another process setting up
// a workspace of the same framework version.
//
// Default: 30 minutes.
//
// Panics if d <= 0.
func WithLockTimeout(d time.Duration) Option {
	requirePositive("lock timeout", d)
	return func(c *registryConfig) {
		c.LockTimeout = d
	}
}

// WithSetupTimeout bounds one Setup, including dependency installation.
//
// Default: 30 minutes.
//
// Panics if d <= 0.
func WithSetupTimeout(d time.Duration) Option {
	requirePositive("setup timeout", d)
	return func(c *registryConfig) {
		c.SetupTimeout = d
	}
}

// WithLogLines sets how many trailing server log lines a *StartupError
// carries.
//
// Default: 100.
//
// Panics if n <= 0.
func WithLogLines(n int) Option {
	requirePositive("log lines", n)
	return func(c *registryConfig) {
		c.LogLines = n
	}
}

// WithFetchRetries sets how often an install attempt is repeated after a
// remote-fetch connection failure.
//
// Default: 5.
//
// Panics if n <= 0.
func WithFetchRetries(n int) Option {
	requirePositive("fetch retries", n)
	return func(c *registryConfig) {
		c.FetchRetries = n
	}
}

// WithToolchain replaces the Rails and Bundler toolchain.
//
// Default: DefaultToolchain().
//
// Panics if tc is invalid.
func WithToolchain(tc Toolchain) Option {
	if err := tc.Validate(); err != nil {
		panic(fmt.Sprintf("appenv: invalid toolchain: %v", err))
	}
	return func(c *registryConfig) {
		c.Toolchain = tc
	}
}
