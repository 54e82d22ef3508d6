package core

import (
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	validConfig := func() Config {
		return Config{
			BaseDir:       "/tmp/appenv",
			PortMin:       20000,
			PortMax:       30000,
			PollInterval:  100 * time.Millisecond,
			PIDTimeout:    20 * time.Second,
			VerifyTimeout: 30 * time.Second,
			StopTimeout:   15 * time.Second,
			LockTimeout:   10 * time.Minute,
			SetupTimeout:  30 * time.Minute,
			LogLines:      100,
			Toolchain:     DefaultToolchain(),
		}
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	tests := map[string]struct {
		modify       func(c *Config)
		wantContains string
	}{
		"empty base dir": {
			modify:       func(c *Config) { c.BaseDir = "" },
			wantContains: "base directory",
		},
		"inverted port range": {
			modify:       func(c *Config) { c.PortMin, c.PortMax = 30000, 20000 },
			wantContains: "port range",
		},
		"port range beyond 65535": {
			modify:       func(c *Config) { c.PortMax = 70000 },
			wantContains: "port range",
		},
		"zero poll interval": {
			modify:       func(c *Config) { c.PollInterval = 0 },
			wantContains: "poll interval",
		},
		"negative pid timeout": {
			modify:       func(c *Config) { c.PIDTimeout = -1 },
			wantContains: "pid timeout",
		},
		"zero verify timeout": {
			modify:       func(c *Config) { c.VerifyTimeout = 0 },
			wantContains: "verify timeout",
		},
		"zero log lines": {
			modify:       func(c *Config) { c.LogLines = 0 },
			wantContains: "log lines",
		},
		"negative fetch retries": {
			modify:       func(c *Config) { c.FetchRetries = -1 },
			wantContains: "fetch retries",
		},
		"relative base template": {
			modify:       func(c *Config) { c.BaseTemplates = []string{"shared"} },
			wantContains: "absolute path",
		},
		"server command without port": {
			modify:       func(c *Config) { c.Toolchain.Server = "bundle exec rails server" },
			wantContains: "{port}",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.modify(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantContains) {
				t.Errorf("error %q should contain %q", err.Error(), tc.wantContains)
			}
		})
	}

	t.Run("multiple errors joined", func(t *testing.T) {
		t.Parallel()
		err := Config{}.Validate()
		if err == nil {
			t.Fatal("expected error for zero-value config")
		}

		errMsg := err.Error()
		expectedParts := []string{
			"base directory",
			"port range",
			"poll interval",
			"pid timeout",
			"verify timeout",
			"stop timeout",
			"lock timeout",
			"setup timeout",
			"log lines",
			"install command",
			"status path",
		}
		for _, part := range expectedParts {
			if !strings.Contains(errMsg, part) {
				t.Errorf("error %q should contain %q", errMsg, part)
			}
		}
	})
}

func TestToolchain_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		modify       func(tc *Toolchain)
		wantContains string
	}{
		"unterminated quote": {
			modify:       func(tc *Toolchain) { tc.Install = `bundle install "--path` },
			wantContains: "install command",
		},
		"blank exec prefix": {
			modify:       func(tc *Toolchain) { tc.Exec = "   " },
			wantContains: "exec command must not be empty",
		},
		"scaffold without name": {
			modify:       func(tc *Toolchain) { tc.Scaffold = "rails new app" },
			wantContains: "{name}",
		},
		"missing pid file": {
			modify:       func(tc *Toolchain) { tc.PIDFile = "" },
			wantContains: "pid file",
		},
		"missing env var": {
			modify:       func(tc *Toolchain) { tc.EnvVar = "" },
			wantContains: "env var",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			toolchain := DefaultToolchain()
			tc.modify(&toolchain)

			err := toolchain.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantContains) {
				t.Errorf("error %q should contain %q", err.Error(), tc.wantContains)
			}
		})
	}

	t.Run("default is valid", func(t *testing.T) {
		t.Parallel()
		if err := DefaultToolchain().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestExpand(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		template string
		vars     map[string]string
		want     []string
	}{
		"version flag present": {
			template: "bundle exec rails {version_flag} new {name} -f",
			vars:     map[string]string{PlaceholderVersionFlag: "_4.2.11_", PlaceholderName: "blog"},
			want:     []string{"bundle", "exec", "rails", "_4.2.11_", "new", "blog", "-f"},
		},
		"empty placeholder is dropped": {
			template: "bundle exec rails {version_flag} new {name} -f",
			vars:     map[string]string{PlaceholderVersionFlag: "", PlaceholderName: "blog"},
			want:     []string{"bundle", "exec", "rails", "new", "blog", "-f"},
		},
		"placeholder inside argument": {
			template: "server --bind=127.0.0.1:{port}",
			vars:     map[string]string{PlaceholderPort: "24001"},
			want:     []string{"server", "--bind=127.0.0.1:24001"},
		},
		"quoted argument kept whole": {
			template: `ruby -e "print RUBY_VERSION"`,
			want:     []string{"ruby", "-e", "print RUBY_VERSION"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := expand(tc.template, tc.vars)
			if err != nil {
				t.Fatalf("expand() error: %v", err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("expand() = %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("unterminated quote", func(t *testing.T) {
		t.Parallel()
		if _, err := expand(`rails "new`, nil); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestToolchain_VersionFlag(t *testing.T) {
	t.Parallel()

	tc := DefaultToolchain()
	for version, want := range map[string]string{
		"":             "",
		DefaultVersion: "",
		"3.0.20":       "_3.0.20_",
	} {
		if got := tc.versionFlag(version); got != want {
			t.Errorf("versionFlag(%q) = %q, want %q", version, got, want)
		}
	}
}

func TestSpec_Resolve(t *testing.T) {
	t.Parallel()

	cfg := Config{
		TemplatesRoot:     "/srv/templates",
		ImplicitTemplates: []string{"common"},
		DefaultVersion:    "4.2.11.3",
	}

	tests := map[string]struct {
		spec    Spec
		cfg     *Config
		want    Spec
		wantErr error
	}{
		"name from single template": {
			spec: Spec{Templates: []string{"blog"}},
			want: Spec{
				Name:        "blog",
				Templates:   []string{"/srv/templates/common", "/srv/templates/blog"},
				Version:     "4.2.11.3",
				Environment: DefaultEnvironment,
			},
		},
		"absolute template and explicit fields": {
			spec: Spec{Name: " shop ", Templates: []string{"/tmp/x/../shop"}, Version: "3.0.20", Environment: "test"},
			want: Spec{
				Name:        "shop",
				Templates:   []string{"/srv/templates/common", "/tmp/shop"},
				Version:     "3.0.20",
				Environment: "test",
			},
		},
		"default version without configured default": {
			spec: Spec{Templates: []string{"blog"}, Version: DefaultVersion},
			cfg:  &Config{TemplatesRoot: "/srv/templates"},
			want: Spec{
				Name:        "blog",
				Templates:   []string{"/srv/templates/blog"},
				Environment: DefaultEnvironment,
			},
		},
		"explicit default overrides configured default": {
			spec: Spec{Templates: []string{"blog"}, Version: DefaultVersion},
			want: Spec{
				Name:        "blog",
				Templates:   []string{"/srv/templates/common", "/srv/templates/blog"},
				Version:     "4.2.11.3",
				Environment: DefaultEnvironment,
			},
		},
		"no templates": {
			spec:    Spec{Name: "x"},
			wantErr: ErrNoTemplates,
		},
		"several templates without name": {
			spec:    Spec{Templates: []string{"a", "b"}},
			wantErr: ErrBlankName,
		},
		"name with separator": {
			spec:    Spec{Name: "a/b", Templates: []string{"a"}},
			wantErr: ErrInvalidName,
		},
		"dot dot name": {
			spec:    Spec{Name: "..", Templates: []string{"a"}},
			wantErr: ErrInvalidName,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := cfg
			if tc.cfg != nil {
				c = *tc.cfg
			}

			got, err := tc.spec.resolve(c)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("resolve() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve() error: %v", err)
			}
			want := tc.want
			for i := range want.Templates {
				want.Templates[i] = filepath.FromSlash(want.Templates[i])
			}
			if got.Name != want.Name || got.Version != want.Version || got.Environment != want.Environment ||
				!slices.Equal(got.Templates, want.Templates) {
				t.Errorf("resolve() = %+v, want %+v", got, want)
			}
		})
	}
}

// TestConfigFieldCount is a canary test that detects when fields are added
// to Config without updating the public API in the root package.
//
// If this test fails, you added a field to core.Config. You must also:
//  1. Add a public WithXxx option function in options.go
//  2. Update expectedFields below to match the new count
func TestConfigFieldCount(t *testing.T) {
	t.Parallel()
	const expectedFields = 19 // Update this when adding new fields to Config.

	actual := reflect.TypeFor[Config]().NumField()
	if actual != expectedFields {
		t.Errorf("Config has %d fields, expected %d; "+
			"if you added a field, also add a WithXxx option in the root package options.go",
			actual, expectedFields)
	}
}
