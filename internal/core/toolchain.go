package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Placeholders recognized in Toolchain command templates. An argument that
// expands to the empty string is dropped.
const (
	PlaceholderVersionFlag = "{version_flag}"
	PlaceholderName        = "{name}"
	PlaceholderPort        = "{port}"
)

// Toolchain describes the external commands and file layout of the
// application framework. Command fields are shell-like strings split with
// shlex; no shell is involved.
type Toolchain struct {
	// Install installs the dependencies listed in the manifest of the
	// working directory. LocalFlag restricts it to locally installed
	// packages.
	Install   string
	LocalFlag string
	// Scaffold creates a new application named {name} in the working
	// directory, using the framework version selected by {version_flag}.
	Scaffold string
	// VersionFlag renders {version_flag} for a concrete version; %s is the
	// version. The default version renders as nothing.
	VersionFlag string
	// Server runs the application server in the foreground on {port}.
	Server string
	// Exec prefixes commands run inside the workspace.
	Exec string
	// RuntimeFacts prints the runtime version, optionally followed by the
	// engine name.
	RuntimeFacts string

	// FrameworkDependency is the manifest entry pinned to the target version.
	FrameworkDependency string
	// FrameworkName and RuntimeName appear in the status banner.
	FrameworkName string
	RuntimeName   string
	// EnvVar carries the instance environment, e.g. "production".
	EnvVar string
	// Scrub lists variable-name prefixes removed from the inherited
	// environment of every command.
	Scrub []string

	// Paths relative to the workspace root.
	Manifest   string
	PIDFile    string
	LogFile    string
	StatusPath string
	MailDir    string
}

// DefaultToolchain returns the Rails and Bundler toolchain.
func DefaultToolchain() Toolchain {
	return Toolchain{
		Install:             "bundle install",
		LocalFlag:           "--local",
		Scaffold:            "bundle exec rails {version_flag} new {name} -d sqlite3 -f -B",
		VersionFlag:         "_%s_",
		Server:              "bundle exec rails server -p {port}",
		Exec:                "bundle exec",
		RuntimeFacts:        `ruby -e "print RUBY_VERSION, ' ', (defined?(RUBY_ENGINE) ? RUBY_ENGINE : 'ruby')"`,
		FrameworkDependency: "rails",
		FrameworkName:       "Rails",
		RuntimeName:         "Ruby",
		EnvVar:              "RAILS_ENV",
		Scrub:               []string{"BUNDLE_", "BUNDLER_", "RUBYOPT", "RUBYLIB"},
		Manifest:            "Gemfile",
		PIDFile:             "tmp/pids/server.pid",
		LogFile:             "log/rails-server.out",
		StatusPath:          "working/rails_is_working",
		MailDir:             "tmp/mails",
	}
}

// Validate checks that every command template parses and that the required
// fields are present.
func (t Toolchain) Validate() error {
	var errs []error

	commands := []struct {
		field, value string
		required     []string
	}{
		{"install", t.Install, nil},
		{"scaffold", t.Scaffold, []string{PlaceholderName}},
		{"server", t.Server, []string{PlaceholderPort}},
		{"exec", t.Exec, nil},
		{"runtime facts", t.RuntimeFacts, nil},
	}
	for _, c := range commands {
		args, err := shlex.Split(c.value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s command %q: %w", c.field, c.value, err))
			continue
		case len(args) == 0:
			errs = append(errs, fmt.Errorf("%s command must not be empty", c.field))
			continue
		}
		for _, p := range c.required {
			if !strings.Contains(c.value, p) {
				errs = append(errs, fmt.Errorf("%s command %q must contain %s", c.field, c.value, p))
			}
		}
	}

	required := []struct{ field, value string }{
		{"framework dependency", t.FrameworkDependency},
		{"framework name", t.FrameworkName},
		{"runtime name", t.RuntimeName},
		{"env var", t.EnvVar},
		{"manifest", t.Manifest},
		{"pid file", t.PIDFile},
		{"log file", t.LogFile},
		{"status path", t.StatusPath},
		{"mail dir", t.MailDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", r.field))
		}
	}

	return errors.Join(errs...)
}

// expand splits template into arguments and substitutes vars. Arguments
// that become empty are dropped, so "{version_flag}" vanishes for the
// default version.
func expand(template string, vars map[string]string) ([]string, error) {
	args, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", template, err)
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, k, v)
		}
		if a != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// versionFlag renders {version_flag} for version; the default version
// yields "".
func (t Toolchain) versionFlag(version string) string {
	if isDefaultVersion(version) || t.VersionFlag == "" {
		return ""
	}
	return fmt.Sprintf(t.VersionFlag, version)
}
