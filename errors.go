package appenv

import (
	"github.com/giantswarm/appenv/internal/client"
	"github.com/giantswarm/appenv/internal/core"
	"github.com/giantswarm/appenv/internal/mailbox"
	"github.com/giantswarm/appenv/internal/probe"
	"github.com/giantswarm/appenv/internal/process"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrBlankName is returned by Ensure when a Spec has several templates
	// and no name, or a blank one.
	ErrBlankName = core.ErrBlankName

	// ErrInvalidName is returned by Ensure for a name that is not a single
	// path element.
	ErrInvalidName = core.ErrInvalidName

	// ErrNoTemplates is returned by Ensure for a Spec without templates.
	ErrNoTemplates = core.ErrNoTemplates

	// ErrTemplateNotFound is returned by Setup when a template directory
	// does not exist. The error names the directory.
	ErrTemplateNotFound = core.ErrTemplateNotFound

	// ErrProcessSurvived is returned by Stop when the server is still alive
	// after SIGKILL and the stop timeout.
	ErrProcessSurvived = core.ErrProcessSurvived

	// ErrNoInstances and ErrAmbiguousInstance are matched by the
	// *SelectionError Current returns.
	ErrNoInstances       = core.ErrNoInstances
	ErrAmbiguousInstance = core.ErrAmbiguousInstance

	// ErrProcessExited is matched by the *StartupError of a server that
	// exited before it became ready.
	ErrProcessExited = process.ErrProcessExited

	// ErrBannerMismatch is matched by the *StartupError of a server whose
	// status endpoint answered with something other than the banner.
	ErrBannerMismatch = probe.ErrBannerMismatch

	// ErrNoMail is returned by Mail when nothing was delivered to the
	// address.
	ErrNoMail = mailbox.ErrNoMail
)

// Error types for inspection with errors.As.
type (
	// TimeoutError reports a bounded wait that ran out, such as the wait
	// for the PID file.
	TimeoutError = core.TimeoutError

	// StartupError reports a server that never answered its status
	// endpoint correctly, with the tail of its log.
	StartupError = core.StartupError

	// VersionMismatchError reports a server running another framework
	// version than requested.
	VersionMismatchError = core.VersionMismatchError

	// SelectionError is returned by Current.
	SelectionError = core.SelectionError

	// StopAllError lists the servers StopAll could not stop.
	StopAllError = core.StopAllError
	StopFailure  = core.StopFailure

	// CommandError reports a failed toolchain command with its output.
	CommandError = process.CommandError

	// StatusError reports an HTTP response with an unexpected status.
	StatusError = client.StatusError

	// ProbeError reports a status endpoint that never became ready.
	ProbeError = probe.Error
)
