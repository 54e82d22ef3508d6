package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeLog(t *testing.T, lines int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := filepath.Join(t.TempDir(), "server.out")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTailCommand(t *testing.T) {
	t.Parallel()

	path := writeLog(t, 150)
	tests := map[string]struct {
		args      []string
		wantFirst string
		wantCount int
	}{
		"default line count": {args: []string{"tail", path}, wantFirst: "line 51", wantCount: 100},
		"short flag":         {args: []string{"tail", "-n", "3", path}, wantFirst: "line 148", wantCount: 3},
		"more than the file": {args: []string{"tail", "--lines", "500", path}, wantFirst: "line 1", wantCount: 150},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			out, err := execute(t, tc.args...)
			if err != nil {
				t.Fatalf("tail error: %v", err)
			}
			lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
			if len(lines) != tc.wantCount || lines[0] != tc.wantFirst || lines[len(lines)-1] != "line 150" {
				t.Errorf("tail printed %d lines from %q to %q", len(lines), lines[0], lines[len(lines)-1])
			}
		})
	}
}

func TestTailCommandErrors(t *testing.T) {
	t.Parallel()

	if _, err := execute(t, "tail"); err == nil {
		t.Error("tail without a file should fail")
	}
	if _, err := execute(t, "tail", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("tail of a missing file should fail")
	}
	if _, err := execute(t, "tail", "-n", "-1", writeLog(t, 1)); err == nil {
		t.Error("negative line count should fail")
	}
}

func TestTailCommandLinesFromEnvironment(t *testing.T) {
	t.Setenv("APPENV_LINES", "2")

	out, err := execute(t, "tail", writeLog(t, 10))
	if err != nil {
		t.Fatalf("tail error: %v", err)
	}
	if out != "line 9\nline 10\n" {
		t.Errorf("tail = %q", out)
	}
}

func TestProbeCommand(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "Rails version: 7.1.3\nRuby version: 3.2.2\nRuby engine: ruby\n")
	}))
	t.Cleanup(srv.Close)

	out, err := execute(t, "probe", "--url", srv.URL, "--timeout", "5s", "--interval", "10ms")
	if err != nil {
		t.Fatalf("probe error: %v", err)
	}

	var got probeSummary
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("probe output is not YAML: %v\n%s", err, out)
	}
	want := probeSummary{URL: srv.URL, FrameworkVersion: "7.1.3", RuntimeVersion: "3.2.2", RuntimeEngine: "ruby"}
	if got != want {
		t.Errorf("probe = %+v, want %+v", got, want)
	}
}

func TestProbeCommandWrongBanner(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "hello")
	}))
	t.Cleanup(srv.Close)

	if _, err := execute(t, "probe", "--url", srv.URL, "--timeout", "5s", "--interval", "10ms"); err == nil {
		t.Fatal("probe of a foreign endpoint should fail")
	}
}

func TestRequiredFlags(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"probe without url":      {"probe"},
		"start without template": {"start"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
