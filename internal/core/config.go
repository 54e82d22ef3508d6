package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/giantswarm/appenv/internal/manifest"
)

// DefaultVersion selects whatever framework version the toolchain installs
// by default. The empty string means the same.
const DefaultVersion = "default"

// DefaultEnvironment is the runtime environment instances run in unless
// their spec says otherwise.
const DefaultEnvironment = "production"

func isDefaultVersion(v string) bool {
	return v == "" || v == DefaultVersion
}

// versionTag names the directory that holds workspaces for version.
func versionTag(v string) string {
	if isDefaultVersion(v) {
		return DefaultVersion
	}
	return v
}

// Config holds configuration for a Registry and the instances it creates.
//
// All fields are immutable after construction via NewRegistry; instances
// read them without synchronization.
type Config struct {
	// BaseDir holds one directory per framework version, each holding one
	// workspace per instance name.
	BaseDir string
	// TemplatesRoot resolves relative template names.
	TemplatesRoot string
	// BaseTemplates are overlaid before every instance's own templates.
	BaseTemplates []string
	// ImplicitTemplates are template names added in front of every spec's
	// templates, resolved like them.
	ImplicitTemplates []string
	// BuiltinTemplate overlays the embedded status endpoint first.
	BuiltinTemplate bool

	// DefaultVersion applies to specs that leave Version empty.
	DefaultVersion string
	// ExtraManifestLines are appended to every application manifest.
	ExtraManifestLines []string

	Host    string
	PortMin int // inclusive
	PortMax int // exclusive

	PollInterval  time.Duration // PID file, status endpoint and exit polling
	PIDTimeout    time.Duration
	VerifyTimeout time.Duration
	StopTimeout   time.Duration
	LockTimeout   time.Duration
	// SetupTimeout bounds the install and scaffold commands of one setup.
	SetupTimeout time.Duration
	// LogLines is how many trailing log lines a StartupError carries.
	LogLines int
	// FetchRetries is how often an install attempt is repeated after a
	// remote-fetch connection failure; 0 means install.DefaultFetchRetries.
	FetchRetries int

	Toolchain Toolchain
}

// Validate checks all Config invariants and returns an error describing
// every violation found.
func (c Config) Validate() error {
	var errs []error

	if c.BaseDir == "" {
		errs = append(errs, errors.New("base directory must not be empty"))
	}
	if c.PortMin <= 0 || c.PortMax > 65536 || c.PortMin >= c.PortMax {
		errs = append(errs, fmt.Errorf("port range [%d, %d) is invalid", c.PortMin, c.PortMax))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"poll interval", c.PollInterval},
		{"pid timeout", c.PIDTimeout},
		{"verify timeout", c.VerifyTimeout},
		{"stop timeout", c.StopTimeout},
		{"lock timeout", c.LockTimeout},
		{"setup timeout", c.SetupTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be greater than 0, got %s", d.name, d.d))
		}
	}
	if c.LogLines <= 0 {
		errs = append(errs, fmt.Errorf("log lines must be greater than 0, got %d", c.LogLines))
	}
	if c.FetchRetries < 0 {
		errs = append(errs, fmt.Errorf("fetch retries must not be negative, got %d", c.FetchRetries))
	}
	for _, t := range c.BaseTemplates {
		if !filepath.IsAbs(t) {
			errs = append(errs, fmt.Errorf("base template %q must be an absolute path", t))
		}
	}
	if err := c.Toolchain.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("toolchain: %w", err))
	}

	return errors.Join(errs...)
}

// Spec describes an instance to Registry.Ensure.
type Spec struct {
	// Name identifies the instance and its workspace. Defaults to the base
	// name of the only template.
	Name string
	// Templates are directories overlaid onto the scaffold in order; later
	// ones win. Relative names resolve under Config.TemplatesRoot.
	Templates []string
	// Version is the framework version, or "" for Config.DefaultVersion.
	Version string
	// Environment defaults to DefaultEnvironment.
	Environment string
	// ManifestLines are appended to the application manifest after
	// Config.ExtraManifestLines.
	ManifestLines []string
	// Modifier edits the application manifest last.
	Modifier manifest.Modifier
}

// resolve validates s and fills in its defaults.
func (s Spec) resolve(cfg Config) (Spec, error) {
	if len(s.Templates) == 0 {
		return Spec{}, ErrNoTemplates
	}

	name := strings.TrimSpace(s.Name)
	if name == "" && len(s.Templates) == 1 {
		name = filepath.Base(strings.TrimSpace(s.Templates[0]))
	}
	switch {
	case name == "":
		return Spec{}, ErrBlankName
	case name == "." || name == ".." || strings.ContainsAny(name, `/\`):
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	templates := make([]string, 0, len(cfg.ImplicitTemplates)+len(s.Templates))
	for _, t := range append(append([]string(nil), cfg.ImplicitTemplates...), s.Templates...) {
		templates = append(templates, resolveTemplate(cfg.TemplatesRoot, t))
	}

	out := s
	out.Name = name
	out.Templates = templates
	if isDefaultVersion(out.Version) {
		out.Version = cfg.DefaultVersion
	}
	if isDefaultVersion(out.Version) {
		out.Version = ""
	}
	if out.Environment == "" {
		out.Environment = DefaultEnvironment
	}
	return out, nil
}

func resolveTemplate(root, name string) string {
	name = strings.TrimSpace(name)
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(root, name)
}
