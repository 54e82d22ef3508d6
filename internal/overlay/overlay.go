// Package overlay copies template directory trees onto an application
// workspace. Sources are applied in order and a file in a later source
// replaces the file with the same relative path from an earlier one.
package overlay

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrOutsideRoot is returned when a walked path does not resolve below its
// source root.
const ErrOutsideRoot = sentinel.Error("path escapes template root")

// Entry is one file to copy.
type Entry struct {
	Source int    // index into the sources passed to NewPlan
	Src    string // absolute source path
	Rel    string // path relative to both the source root and the destination
	Mode   fs.FileMode
}

// Plan is the resolved set of files and directories an overlay writes.
type Plan struct {
	Sources []string
	Dirs    []string // relative directories, parents first
	Entries []Entry  // one per relative path, the last source wins
}

// NewPlan walks every source root in order. Each root must be an existing
// directory.
func NewPlan(sources []string) (*Plan, error) {
	p := &Plan{Sources: slices.Clone(sources)}
	byRel := make(map[string]int)
	seenDir := make(map[string]bool)

	for i, root := range sources {
		if err := fileutil.RequireDir(root); err != nil {
			return nil, fmt.Errorf("template source: %w", err)
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := relBelow(root, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}

			info, err := os.Stat(path) // follows symlinks
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if d.IsDir() {
				if !seenDir[rel] {
					seenDir[rel] = true
					p.Dirs = append(p.Dirs, rel)
				}
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			e := Entry{Source: i, Src: path, Rel: rel, Mode: info.Mode().Perm()}
			if idx, ok := byRel[rel]; ok {
				p.Entries[idx] = e
				return nil
			}
			byRel[rel] = len(p.Entries)
			p.Entries = append(p.Entries, e)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk template source %s: %w", root, err)
		}
	}
	return p, nil
}

func relBelow(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%s relative to %s: %w", path, root, ErrOutsideRoot)
	}
	return rel, nil
}

// Apply creates the plan's directories under dest and copies its files,
// several at a time, preserving permission bits.
func (p *Plan) Apply(ctx context.Context, dest string) error {
	for _, rel := range p.Dirs {
		if err := fileutil.EnsureDir(filepath.Join(dest, rel)); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range p.Entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mode := e.Mode
			if err := fileutil.CopyFile(e.Src, filepath.Join(dest, e.Rel), &fileutil.CopyFileOptions{Mode: &mode}); err != nil {
				return fmt.Errorf("overlay %s: %w", e.Rel, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Apply plans and applies sources onto dest in one step.
func Apply(ctx context.Context, sources []string, dest string) (*Plan, error) {
	p, err := NewPlan(sources)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(ctx, dest); err != nil {
		return nil, err
	}
	return p, nil
}
