package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// DefaultStopTimeout is used by Close when a Spawned is closed without Stop.
const DefaultStopTimeout = 10 * time.Second

// termGracePeriod is how long Stop waits after SIGTERM before sending SIGKILL.
const termGracePeriod = 5 * time.Second

// killDrainTimeout bounds the wait for cmd.Wait after SIGKILL.
const killDrainTimeout = 10 * time.Second

// Spawned is a background process started by Exec.Start. Exactly one
// goroutine calls cmd.Wait; Stop consumes its result and Exited broadcasts
// that it happened.
//
// Spawned is not safe for concurrent use.
type Spawned struct {
	cmd     *exec.Cmd
	done    <-chan error
	exited  <-chan struct{}
	logFile *os.File
	name    string
	log     *slog.Logger
}

func newSpawned(cmd *exec.Cmd, logFile *os.File, name string, logger *slog.Logger) *Spawned {
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- cmd.Wait()
		close(exited)
	}()
	return &Spawned{cmd: cmd, done: done, exited: exited, logFile: logFile, name: name, log: logger}
}

// Pid returns the operating system process id, or 0 once stopped.
func (s *Spawned) Pid() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Exited is closed when the process exits. Nil after Stop.
func (s *Spawned) Exited() <-chan struct{} {
	return s.exited
}

// Stop sends SIGTERM, escalates to SIGKILL after a grace period capped at
// timeout, and waits for the process to be reaped. A process that already
// exited, for whatever reason, stops cleanly.
func (s *Spawned) Stop(timeout time.Duration) error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	pid := s.cmd.Process.Pid
	err := stopWithDone(s.cmd, s.done, timeout, s.name)
	if err != nil {
		s.log.Warn("background command stop failed; process may be orphaned",
			"command", s.name, "pid", pid, "error", err)
	}
	s.cmd = nil
	s.done = nil
	s.exited = nil
	return err
}

// Close releases the log file, stopping the process first if Stop was not called.
func (s *Spawned) Close() {
	if s.cmd != nil {
		s.log.Warn("Spawned.Close called without Stop; stopping automatically", "command", s.name)
		if err := s.Stop(DefaultStopTimeout); err != nil {
			s.log.Warn("auto-stop during Close failed", "command", s.name, "error", err)
		}
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
		s.logFile = nil
	}
}

// Release stops *sp, closes it and clears the pointer, returning the Stop
// error. The handle is closed and cleared even when Stop fails. A nil *sp
// is a no-op.
func Release(sp **Spawned, timeout time.Duration) error {
	if sp == nil || *sp == nil {
		return nil
	}
	s := *sp
	*sp = nil
	err := s.Stop(timeout)
	s.Close()
	return err
}

func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// stopWithDone runs the SIGTERM then SIGKILL sequence against a process whose
// single cmd.Wait result arrives on done. It never nils its arguments.
func stopWithDone(cmd *exec.Cmd, done <-chan error, timeout time.Duration, name string) error {
	if done == nil {
		return fmt.Errorf("%s: done channel must not be nil", name)
	}

	// A failing signal means the process is already gone.
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		ok, waitErr := drainDone(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out draining process after signal failure", name)
		}
		return ignoreExit(waitErr, name)
	}

	killTimer := time.AfterFunc(min(termGracePeriod, timeout), func() {
		_ = cmd.Process.Kill()
	})
	defer killTimer.Stop()

	totalTimer := time.NewTimer(timeout)
	defer totalTimer.Stop()

	select {
	case err := <-done:
		return ignoreExit(err, name)
	case <-totalTimer.C:
		ok, waitErr := drainDone(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out waiting for process to exit after SIGKILL", name)
		}
		if err := ignoreExit(waitErr, name); err != nil {
			return fmt.Errorf("%s stop timeout: %w", name, err)
		}
		return nil
	}
}

// ignoreExit treats any exit status as a successful stop: the server may
// already have been SIGKILLed by PID, or may have died on its own. Only
// errors that are not exit statuses are reported.
func ignoreExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
