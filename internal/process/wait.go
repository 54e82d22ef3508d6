package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// WaitReady configuration and lifecycle errors.
const (
	ErrEmptyName           = sentinel.Error("wait ready: name must not be empty")
	ErrIntervalNotPositive = sentinel.Error("interval must be positive")
	ErrTimeoutNotPositive  = sentinel.Error("timeout must be positive")
	ErrProcessExited       = sentinel.Error("process exited before becoming ready")
)

// ReadinessCheck reports whether the awaited condition holds. attempt starts
// at 1. A non-nil error aborts polling.
type ReadinessCheck func(ctx context.Context, attempt int) (ready bool, err error)

// WaitReadyConfig configures WaitReady.
type WaitReadyConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	// Immediate runs the first check before waiting one interval.
	Immediate     bool
	Name          string          // used in logs and errors
	Port          int             // logged when non-zero
	Logger        *slog.Logger    // defaults to slog.Default()
	ProcessExited <-chan struct{} // if non-nil, a closed channel ends the wait
}

// WaitReady calls check every Interval until it reports ready or returns an
// error, or until Timeout elapses. If ProcessExited is closed when a check
// reports not ready, WaitReady fails with ErrProcessExited.
func WaitReady(ctx context.Context, cfg WaitReadyConfig, check ReadinessCheck) error {
	if cfg.Name == "" {
		return ErrEmptyName
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrIntervalNotPositive)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrTimeoutNotPositive)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// The condition runs sequentially, so attempt needs no locking.
	attempt := 0
	err := wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, cfg.Immediate,
		func(pollCtx context.Context) (bool, error) {
			attempt++
			ready, err := check(pollCtx, attempt)
			if err != nil {
				return false, err
			}
			if ready {
				log.Debug("wait succeeded", "name", cfg.Name, "port", cfg.Port, "attempt", attempt)
				return true, nil
			}
			// Checked after the condition: a process may exit once it has
			// done what was awaited, for example a server that daemonizes
			// after writing its PID file.
			if cfg.ProcessExited != nil {
				select {
				case <-cfg.ProcessExited:
					return false, fmt.Errorf("%s: %w", cfg.Name, ErrProcessExited)
				default:
				}
			}
			return false, nil
		})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", cfg.Name, err)
	}
	return nil
}
