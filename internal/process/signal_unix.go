//go:build unix

package process

import (
	"errors"
	"fmt"
	"syscall"
)

// Kill sends SIGKILL to pid. A pid that no longer exists is not an error.
func Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("kill %d: %w", pid, ErrInvalidPID)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}

// Alive reports whether a process with this pid exists. A process owned by
// another user still counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
