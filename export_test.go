package appenv

import "time"

// ConfigSnapshot holds a copy of registryConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	BaseDir            string
	TemplatesRoot      string
	BaseTemplates      []string
	ImplicitTemplates  []string
	BuiltinTemplate    bool
	DefaultVersion     string
	ExtraManifestLines []string
	Host               string
	PortMin            int
	PortMax            int
	PollInterval       time.Duration
	PIDTimeout         time.Duration
	VerifyTimeout      time.Duration
	StopTimeout        time.Duration
	LockTimeout        time.Duration
	SetupTimeout       time.Duration
	LogLines           int
	FetchRetries       int
	Toolchain          Toolchain
}

// ApplyOptionsForTesting creates a default registryConfig, applies the given
// options, and returns a ConfigSnapshot of the result.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		BaseDir:            cfg.BaseDir,
		TemplatesRoot:      cfg.TemplatesRoot,
		BaseTemplates:      cfg.BaseTemplates,
		ImplicitTemplates:  cfg.ImplicitTemplates,
		BuiltinTemplate:    cfg.BuiltinTemplate,
		DefaultVersion:     cfg.DefaultVersion,
		ExtraManifestLines: cfg.ExtraManifestLines,
		Host:               cfg.Host,
		PortMin:            cfg.PortMin,
		PortMax:            cfg.PortMax,
		PollInterval:       cfg.PollInterval,
		PIDTimeout:         cfg.PIDTimeout,
		VerifyTimeout:      cfg.VerifyTimeout,
		StopTimeout:        cfg.StopTimeout,
		LockTimeout:        cfg.LockTimeout,
		SetupTimeout:       cfg.SetupTimeout,
		LogLines:           cfg.LogLines,
		FetchRetries:       cfg.FetchRetries,
		Toolchain:          cfg.Toolchain,
	}
}
