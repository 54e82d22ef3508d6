package appenv

import (
	"github.com/giantswarm/appenv/internal/client"
	"github.com/giantswarm/appenv/internal/core"
	"github.com/giantswarm/appenv/internal/mailbox"
	"github.com/giantswarm/appenv/internal/manifest"
	"github.com/giantswarm/appenv/internal/probe"
)

// Spec describes a server to Registry.Ensure and Registry.Start.
type Spec struct {
	// Name identifies the server and its workspace. Defaults to the base
	// name of the only template; required with several templates.
	Name string
	// Templates are directories overlaid onto the scaffold in order, later
	// ones winning. Relative names resolve under the templates root.
	Templates []string
	// Version is the framework version. Empty or DefaultVersion selects
	// the registry default (see WithDefaultVersion).
	Version string
	// Environment is the runtime environment. Defaults to
	// DefaultEnvironment.
	Environment string
	// ManifestLines are appended verbatim to the application manifest.
	ManifestLines []string
	// Modifier edits the application manifest after every other change.
	Modifier func(*Manifest) error
}

func (s Spec) toCore() core.Spec {
	return core.Spec{
		Name:          s.Name,
		Templates:     s.Templates,
		Version:       s.Version,
		Environment:   s.Environment,
		ManifestLines: s.ManifestLines,
		Modifier:      s.Modifier,
	}
}

// DefaultVersion selects whatever framework version the toolchain installs
// by default.
const DefaultVersion = core.DefaultVersion

// DefaultEnvironment is the runtime environment of servers whose Spec
// leaves it empty.
const DefaultEnvironment = core.DefaultEnvironment

// Manifest is an application's dependency list (a Gemfile for the default
// toolchain). Unrecognized lines are kept as they are.
type Manifest = manifest.Manifest

// Toolchain describes the commands and file layout of the framework.
type Toolchain = core.Toolchain

// DefaultToolchain returns the Rails and Bundler toolchain.
func DefaultToolchain() Toolchain { return core.DefaultToolchain() }

// State is the lifecycle position of a Server.
type State = core.State

// Lifecycle states, in order.
const (
	StateFresh                 = core.StateFresh
	StateDirectoriesPrepared   = core.StateDirectoriesPrepared
	StateDependenciesInstalled = core.StateDependenciesInstalled
	StateTemplateFilesOverlaid = core.StateTemplateFilesOverlaid
	StateStarted               = core.StateStarted
	StateVerified              = core.StateVerified
	StateStopped               = core.StateStopped
)

// HTTP facade types.
type (
	Request      = client.Request
	Response     = client.Response
	Method       = client.Method
	StatusPolicy = client.StatusPolicy
)

// Request methods and status policies.
const (
	MethodGet  = client.MethodGet
	MethodPost = client.MethodPost

	StatusRequireOK  = client.StatusRequireOK
	StatusNilOnError = client.StatusNilOnError
	StatusIgnore     = client.StatusIgnore
)

// Message is one delivered mail.
type Message = mailbox.Message

// Banner is what a server reports on its status endpoint.
type Banner = probe.Banner
