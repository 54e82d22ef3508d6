package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/appenv/internal/fileutil"
)

// lockFileName is created in every version directory and in the base
// directory.
const lockFileName = ".appenv.lock"

// fileLockRetryInterval is the interval between attempts to take a lock
// held by another process.
const fileLockRetryInterval = 50 * time.Millisecond

// acquireDirLock takes the exclusive lock guarding dir, waiting at most
// timeout. Workspaces of one version share their parent directory (the
// bootstrap manifest and the scaffold run there), so the lock is per
// version directory rather than per workspace.
func acquireDirLock(ctx context.Context, dir string, timeout time.Duration) (*flock.Flock, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("prepare lock directory: %w", err)
	}
	lockPath := filepath.Join(dir, lockFileName)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, fileLockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring file lock %s: %w", lockPath, err)
	}
	if !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquiring file lock %s: %w", lockPath, ctx.Err())
		}
		return nil, fmt.Errorf("acquiring file lock %s: lock not acquired", lockPath)
	}
	return fl, nil
}

// releaseFileLock releases the lock and closes its descriptor. The lock
// file stays on disk; removing it could split a concurrent holder's lock.
func releaseFileLock(logger *slog.Logger, fl *flock.Flock) {
	if fl != nil {
		if err := fl.Close(); err != nil {
			logger.Debug("failed to release file lock", "path", fl.Path(), "err", err)
		}
	}
}
