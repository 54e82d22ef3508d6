package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrEmptySrc is returned when a source path is empty.
const ErrEmptySrc = sentinel.Error("source path must not be empty")

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// CopyFileOptions configures CopyFile. The zero value writes dst in place
// with mode 0644.
type CopyFileOptions struct {
	Mode   *os.FileMode // permissions for dst; nil means 0644
	Sync   bool         // fsync dst before closing it
	Atomic bool         // write to a sibling temp file and rename over dst
}

// CopyFile copies src to dst, creating the parent directories of dst.
// Copying a file onto itself (including through a symlinked directory) is a
// no-op. With opts.Atomic, readers of dst never observe a partial file.
func CopyFile(src, dst string, opts *CopyFileOptions) (retErr error) {
	if src == "" {
		return ErrEmptySrc
	}
	if dst == "" {
		return ErrEmptyDst
	}

	if same, err := sameFile(src, dst); err != nil {
		return err
	} else if same {
		return nil
	}

	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	in, err := os.Open(src) //nolint:gosec // G304: template paths are caller-controlled
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("close source: %w", closeErr)
		}
	}()

	var o CopyFileOptions
	if opts != nil {
		o = *opts
	}
	mode := os.FileMode(0o644)
	if o.Mode != nil {
		mode = *o.Mode
	}

	out, writePath, err := openDst(dst, mode, o.Atomic)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(writePath)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}

	if o.Sync || o.Atomic {
		if err := out.Sync(); err != nil {
			_ = out.Close()
			return fmt.Errorf("sync: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	if writePath != dst {
		if err := os.Rename(writePath, dst); err != nil {
			return fmt.Errorf("rename temp file to destination: %w", err)
		}
	}
	return nil
}

// sameFile reports whether src and dst already name the same inode. A missing
// dst is simply "not the same".
func sameFile(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false, nil //nolint:nilerr // dst usually does not exist yet
	}
	return os.SameFile(srcInfo, dstInfo), nil
}

func openDst(dst string, mode os.FileMode, atomic bool) (*os.File, string, error) {
	if atomic {
		tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-copy-*")
		if err != nil {
			return nil, "", fmt.Errorf("create temp file: %w", err)
		}
		if err := tmp.Chmod(mode); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return nil, "", fmt.Errorf("chmod temp file: %w", err)
		}
		return tmp, tmp.Name(), nil
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode) //nolint:gosec // G304: caller-controlled
	if err != nil {
		return nil, "", fmt.Errorf("create destination: %w", err)
	}
	// OpenFile only applies mode when creating; an overwritten file keeps
	// its old bits otherwise.
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("chmod destination: %w", err)
	}
	return f, dst, nil
}
