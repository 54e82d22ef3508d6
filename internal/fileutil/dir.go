package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrNotDir is returned by RequireDir when the path exists but is not a directory.
const ErrNotDir = sentinel.Error("not a directory")

// EnsureDir creates path and any missing parents with mode 0755.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}

// RecreateDir removes path with everything below it and creates it again empty.
// A missing path is not an error.
func RecreateDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	return EnsureDir(path)
}

// RequireDir returns nil if path names an existing directory. Otherwise the
// returned error wraps fs.ErrNotExist or ErrNotDir and names the path.
func RequireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotDir)
	}
	return nil
}
