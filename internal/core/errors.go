package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// Instance specification errors.
const (
	ErrBlankName        = sentinel.Error("instance name must not be blank")
	ErrInvalidName      = sentinel.Error("instance name must be a single path element")
	ErrNoTemplates      = sentinel.Error("at least one template is required")
	ErrTemplateNotFound = sentinel.Error("template directory does not exist")
)

// ErrProcessSurvived is returned by Stop when the server is still alive
// after SIGKILL and the stop timeout.
const ErrProcessSurvived = sentinel.Error("server process survived SIGKILL")

// Selection errors, matched through *SelectionError.
const (
	ErrNoInstances       = sentinel.Error("no application servers have been started")
	ErrAmbiguousInstance = sentinel.Error("multiple application servers have been started; specify which one you want")
)

// TimeoutError reports a bounded wait that ran out.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
	Path    string // the file being waited on, if any
	Err     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: timed out after %s", e.Op, e.Elapsed.Round(time.Millisecond))
	if e.Path != "" {
		msg += fmt.Sprintf("; no usable file at %s", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// StartupError reports a server that was spawned but never answered its
// status endpoint correctly. LogPath is empty and LastLines nil when the
// server log could not be read.
type StartupError struct {
	Elapsed   time.Duration
	Cause     error
	LogPath   string
	LastLines []string
}

func (e *StartupError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "application server failed to start responding to requests after %s: %v",
		e.Elapsed.Round(time.Second), e.Cause)
	b.WriteString("\nThis usually means code that fails at boot, such as a syntax error in an eagerly loaded class.")
	if e.LogPath != "" {
		fmt.Fprintf(&b, "\nserver output is in %s", e.LogPath)
	}
	if len(e.LastLines) > 0 {
		fmt.Fprintf(&b, "\nlast %d lines of the log:\n%s", len(e.LastLines), strings.Join(e.LastLines, "\n"))
	}
	return b.String()
}

func (e *StartupError) Unwrap() error { return e.Cause }

// VersionMismatchError reports a server running a framework version other
// than the one requested.
type VersionMismatchError struct {
	Want string
	Got  string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("spawned the wrong framework version: wanted %q but got %q", e.Want, e.Got)
}

// SelectionError is returned by Registry.Current when it cannot pick a
// single instance. Err is ErrNoInstances or ErrAmbiguousInstance.
type SelectionError struct {
	Names []string
	Err   error
}

func (e *SelectionError) Error() string {
	if len(e.Names) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(e.Names, ", "))
}

func (e *SelectionError) Unwrap() error { return e.Err }

// StopFailure is one instance that Registry.StopAll could not stop.
type StopFailure struct {
	Name string
	Err  error
}

// StopAllError lists every instance that failed to stop, in registration
// order.
type StopAllError struct {
	Failures []StopFailure
}

func (e *StopAllError) Error() string {
	var b strings.Builder
	b.WriteString("unable to stop all application servers:")
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Name, f.Err)
	}
	return b.String()
}

// Unwrap exposes each failure so errors.Is sees through to the causes.
func (e *StopAllError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
