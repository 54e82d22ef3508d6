package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrInvalidPID is returned when a PID file holds something other than a
// positive integer of at most ten digits.
const ErrInvalidPID = sentinel.Error("invalid pid")

// ErrStillRunning is returned by WaitExit when the process outlives the timeout.
const ErrStillRunning = sentinel.Error("process still running")

var pidPattern = regexp.MustCompile(`^\d{1,10}$`)

// ReadPIDFile reads a PID written by a server. Surrounding whitespace is
// ignored. The error wraps fs.ErrNotExist while the file has not appeared.
func ReadPIDFile(path string) (int, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path inside the workspace
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(raw))
	if !pidPattern.MatchString(text) {
		return 0, fmt.Errorf("%s contains %q: %w", path, text, ErrInvalidPID)
	}
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%s contains %q: %w", path, text, ErrInvalidPID)
	}
	return pid, nil
}

// WaitExit polls Alive(pid) every interval until the process is gone or
// timeout elapses, in which case the error wraps ErrStillRunning.
func WaitExit(ctx context.Context, pid int, interval, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(context.Context) (bool, error) {
		return !Alive(pid), nil
	})
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) && ctx.Err() == nil {
		return fmt.Errorf("pid %d after %s: %w", pid, timeout, ErrStillRunning)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("wait for pid %d to exit: %w", pid, errors.Join(err, ErrStillRunning))
	}
	return fmt.Errorf("wait for pid %d to exit: %w", pid, err)
}
