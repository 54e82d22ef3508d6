package manifest

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrEmptyName is returned by Require for a blank dependency name.
const ErrEmptyName = sentinel.Error("dependency name must not be empty")

// DefaultSource is the gem source written by New.
const DefaultSource = "https://rubygems.org"

var (
	gemLine     = regexp.MustCompile(`^(\s*)gem\s+(['"])([^'"]+)['"]\s*(.*)$`)
	quotedValue = regexp.MustCompile(`^,\s*(['"])([^'"]*)['"]\s*`)
)

// Dependency is one recognized gem line.
type Dependency struct {
	Name        string
	Constraints []string
	// Line is the zero-based index of the line in the manifest.
	Line int
}

// Manifest is an ordered list of raw lines.
type Manifest struct {
	lines []string
}

// Modifier edits a manifest in place. It is how callers add their own
// requirements to an application's dependency list.
type Modifier func(*Manifest) error

// New returns a manifest containing only a source line for source, or for
// DefaultSource when source is empty.
func New(source string) *Manifest {
	if source == "" {
		source = DefaultSource
	}
	return &Manifest{lines: []string{fmt.Sprintf("source '%s'", source)}}
}

// Parse splits data into lines. A trailing newline does not produce an empty
// final line.
func Parse(data []byte) *Manifest {
	text := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return &Manifest{}
	}
	return &Manifest{lines: strings.Split(text, "\n")}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: workspace path
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data), nil
}

// Bytes renders the manifest with a trailing newline.
func (m *Manifest) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range m.lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Write stores the manifest at path, creating parent directories.
func (m *Manifest) Write(path string) error {
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, m.Bytes(), 0o644); err != nil { //nolint:gosec // G306: manifests are world-readable
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Lines returns a copy of the raw lines.
func (m *Manifest) Lines() []string {
	return slices.Clone(m.lines)
}

// Dependencies returns every recognized gem line in file order.
func (m *Manifest) Dependencies() []Dependency {
	var deps []Dependency
	for i, l := range m.lines {
		if d, _, ok := parseGem(l); ok {
			d.Line = i
			deps = append(deps, d)
		}
	}
	return deps
}

// Lookup returns the first gem line for name.
func (m *Manifest) Lookup(name string) (Dependency, bool) {
	for _, d := range m.Dependencies() {
		if d.Name == name {
			return d, true
		}
	}
	return Dependency{}, false
}

// Require makes sure name is declared with at least the given constraints.
// Constraints already present are not repeated; new ones are appended after
// the existing ones. If name is not declared yet, a gem line is appended.
func (m *Manifest) Require(name string, constraints ...string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	d, ok := m.Lookup(name)
	if !ok {
		m.lines = append(m.lines, formatGem("", name, dedupe(nil, constraints), ""))
		return nil
	}

	merged := dedupe(d.Constraints, constraints)
	if len(merged) == len(d.Constraints) {
		return nil
	}
	_, parts, _ := parseGem(m.lines[d.Line])
	m.lines[d.Line] = formatGem(parts.indent, name, merged, parts.rest)
	return nil
}

// AddLine appends line verbatim unless an identical line is already present.
func (m *Manifest) AddLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if slices.Contains(m.lines, line) {
		return
	}
	m.lines = append(m.lines, line)
}

type gemParts struct {
	indent string
	rest   string
}

func parseGem(line string) (Dependency, gemParts, bool) {
	match := gemLine.FindStringSubmatch(line)
	if match == nil {
		return Dependency{}, gemParts{}, false
	}
	d := Dependency{Name: match[3]}
	rest := match[4]
	for {
		q := quotedValue.FindStringSubmatch(rest)
		if q == nil {
			break
		}
		d.Constraints = append(d.Constraints, q[2])
		rest = rest[len(q[0]):]
	}
	return d, gemParts{indent: match[1], rest: strings.TrimSpace(rest)}, true
}

func formatGem(indent, name string, constraints []string, rest string) string {
	var b strings.Builder
	b.WriteString(indent)
	fmt.Fprintf(&b, "gem '%s'", name)
	for _, c := range constraints {
		fmt.Fprintf(&b, ", '%s'", c)
	}
	switch {
	case rest == "":
	case strings.HasPrefix(rest, ","):
		b.WriteString(rest)
	case strings.HasPrefix(rest, "#"):
		b.WriteString(" " + rest)
	default:
		b.WriteString(", " + rest)
	}
	return b.String()
}

func dedupe(existing, extra []string) []string {
	out := slices.Clone(existing)
	for _, c := range extra {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
