package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrEmptyArgs is returned when a Command has no program to run.
const ErrEmptyArgs = sentinel.Error("command has no arguments")

// ErrEmptyDir is returned when a Command has no working directory.
const ErrEmptyDir = sentinel.Error("command directory must not be empty")

// Runner runs commands on behalf of an application instance. Exec is the
// production implementation; tests substitute their own.
type Runner interface {
	// Run executes c to completion and returns its combined output. A
	// non-zero exit is reported as a *CommandError carrying that output.
	Run(ctx context.Context, c Command) (string, error)

	// Start launches c in the background with stdout and stderr appended
	// to logPath and returns without waiting for it.
	Start(c Command, logPath string) (*Spawned, error)
}

var _ Runner = (*Exec)(nil)

// Exec runs commands with os/exec.
type Exec struct {
	log *slog.Logger
}

// NewExec returns an Exec that logs to logger, or slog.Default() if nil.
func NewExec(logger *slog.Logger) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{log: logger}
}

func validate(c Command) error {
	if len(c.Args) == 0 || c.Args[0] == "" {
		return ErrEmptyArgs
	}
	if c.Dir == "" {
		return ErrEmptyDir
	}
	return nil
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, c Command) (string, error) {
	if err := validate(c); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) //nolint:gosec // G204: toolchain commands are configured by the caller
	cmd.Dir = c.Dir
	cmd.Env = c.Environ()
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	e.log.Debug("running command", "dir", c.Dir, "command", c.String())
	err := cmd.Run()
	if err == nil {
		return out.String(), nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return out.String(), &CommandError{
		Dir:      c.Dir,
		Command:  c.String(),
		ExitCode: exitCode,
		Output:   out.String(),
		Err:      err,
	}
}

// Start implements Runner.
func (e *Exec) Start(c Command, logPath string) (*Spawned, error) {
	if err := validate(c); err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDirForFile(logPath); err != nil {
		return nil, fmt.Errorf("prepare log file: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644) //nolint:gosec // G304: path inside the workspace
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// No context: the server must outlive the call that started it.
	cmd := exec.Command(c.Args[0], c.Args[1:]...) //nolint:gosec,noctx // G204: see Run
	cmd.Dir = c.Dir
	cmd.Env = c.Environ()
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	setParentDeathSignal(cmd)

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, &CommandError{Dir: c.Dir, Command: c.String(), ExitCode: -1, Err: err}
	}
	e.log.Debug("started background command", "dir", c.Dir, "command", c.String(), "pid", cmd.Process.Pid, "log", logPath)

	return newSpawned(cmd, logFile, c.String(), e.log), nil
}
