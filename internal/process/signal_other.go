//go:build !unix

package process

import (
	"fmt"
	"os"
)

// Kill terminates pid. A pid that no longer exists is not an error.
func Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("kill %d: %w", pid, ErrInvalidPID)
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil //nolint:nilerr // already gone
	}
	if err := p.Kill(); err != nil && err != os.ErrProcessDone {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	return nil
}

// Alive reports whether a process with this pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
