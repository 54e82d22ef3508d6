package core

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/giantswarm/appenv/internal/fileutil"
)

// builtinFS is the template every instance gets first when
// Config.BuiltinTemplate is set: the status endpoint, its route and an
// exception-to-JSON handler.
//
//go:embed builtin
var builtinFS embed.FS

const builtinDirName = ".builtin-template"

// writeBuiltinTemplate materializes the embedded template under baseDir and
// returns its path. Files are rewritten on every call so an upgraded binary
// never serves a stale copy.
func writeBuiltinTemplate(ctx context.Context, baseDir string, cfg Config) (string, error) {
	lock, err := acquireDirLock(ctx, baseDir, cfg.LockTimeout)
	if err != nil {
		return "", err
	}
	defer releaseFileLock(Logger(), lock)

	dest := filepath.Join(baseDir, builtinDirName)
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return "", fmt.Errorf("builtin template: %w", err)
	}
	err = fs.WalkDir(sub, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		target := filepath.Join(dest, filepath.FromSlash(path))
		if d.IsDir() {
			return fileutil.EnsureDir(target)
		}
		data, err := fs.ReadFile(sub, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644) //nolint:gosec // G306: template files are world-readable
	})
	if err != nil {
		return "", fmt.Errorf("write builtin template: %w", err)
	}
	return dest, nil
}

// builtinTemplate materializes the embedded template once per Registry.
type builtinTemplate struct {
	baseDir string
	cfg     Config

	mu  sync.Mutex
	dir string
}

// Path returns the directory holding the builtin template, writing it on
// first use.
func (b *builtinTemplate) Path(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dir != "" {
		return b.dir, nil
	}
	dir, err := writeBuiltinTemplate(ctx, b.baseDir, b.cfg)
	if err != nil {
		return "", err
	}
	b.dir = dir
	return dir, nil
}
