package core

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/appenv/internal/process"
)

const scaffoldGemfile = `source 'https://rubygems.org'

gem 'rails', '4.2.11.3'
gem 'sqlite3'
gem 'sass-rails', '~> 5.0'
gem 'uglifier', '>= 1.3.0'
`

// fakeRunner stands in for the toolchain. Run answers the runtime-facts,
// install and scaffold commands; Start runs a real sleep process, writes
// its pid where the server would, and serves the status endpoint on the
// requested port from inside the test.
type fakeRunner struct {
	t    *testing.T
	exec *process.Exec

	// Knobs, set before use.
	runtime  string // runtime facts output
	version  string // framework version in the banner
	status   int    // status endpoint response code
	body     string // overrides the banner when non-empty
	logLines int    // lines written to the server log on start
	noPID    bool   // never write the PID file
	exitNow  bool   // the server process exits immediately
	failRun  func(c process.Command) error

	mu      sync.Mutex
	runs    []process.Command
	starts  []process.Command
	servers map[string]*http.Server // by port
}

func newFakeRunner(t *testing.T) *fakeRunner {
	t.Helper()
	return &fakeRunner{
		t:       t,
		exec:    process.NewExec(nil),
		runtime: "2.6.10 ruby\n",
		version: "4.2.11.3",
		status:  http.StatusOK,
	}
}

func (f *fakeRunner) Run(_ context.Context, c process.Command) (string, error) {
	f.mu.Lock()
	f.runs = append(f.runs, c)
	fail := f.failRun
	f.mu.Unlock()

	if fail != nil {
		if err := fail(c); err != nil {
			return "", err
		}
	}

	switch {
	case c.Args[0] == "ruby":
		return f.runtime, nil
	case slices.Contains(c.Args, "new"):
		name := c.Args[slices.Index(c.Args, "new")+1]
		app := filepath.Join(c.Dir, name)
		files := map[string]string{
			"Gemfile":          scaffoldGemfile,
			"config/routes.rb": "Rails.application.routes.draw do\nend\n",
			"app/controllers/application_controller.rb": "class ApplicationController < ActionController::Base\nend\n",
		}
		for rel, content := range files {
			writeFile(f.t, filepath.Join(app, rel), content)
		}
		return "create " + name, nil
	}
	return "", nil
}

func (f *fakeRunner) Start(c process.Command, logPath string) (*process.Spawned, error) {
	f.mu.Lock()
	f.starts = append(f.starts, c)
	f.mu.Unlock()

	args := []string{"sleep", "60"}
	if f.exitNow {
		args = []string{"true"}
	}
	sp, err := f.exec.Start(process.Command{Dir: c.Dir, Args: args}, logPath)
	if err != nil {
		return nil, err
	}

	if f.logLines > 0 {
		var b strings.Builder
		for i := 1; i <= f.logLines; i++ {
			fmt.Fprintf(&b, "log line %d\n", i)
		}
		appendFile(f.t, logPath, b.String())
	}

	if !f.exitNow {
		port := c.Args[slices.Index(c.Args, "-p")+1]
		if err := f.serve(port, sp.Exited()); err != nil {
			_ = sp.Stop(time.Second)
			sp.Close()
			return nil, err
		}
	}

	if !f.noPID && !f.exitNow {
		writeFile(f.t, filepath.Join(c.Dir, "tmp", "pids", "server.pid"), strconv.Itoa(sp.Pid())+"\n")
	}
	return sp, nil
}

// serve answers on port until exited is closed, the way the real server
// would stop answering once killed.
func (f *fakeRunner) serve(port string, exited <-chan struct{}) error {
	// A restart reuses the port; the previous server may not have noticed
	// its process exit yet.
	f.mu.Lock()
	if prev := f.servers[port]; prev != nil {
		_ = prev.Close()
	}
	f.mu.Unlock()

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/working/rails_is_working", func(w http.ResponseWriter, _ *http.Request) {
		body := f.body
		if body == "" {
			body = fmt.Sprintf("Rails version: %s\nRuby version: 2.6.10\nRuby engine: ruby\n", f.version)
		}
		w.WriteHeader(f.status)
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "  path=%s q=%s  \n", r.URL.Path, r.URL.Query().Get("q"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second}
	f.mu.Lock()
	if f.servers == nil {
		f.servers = make(map[string]*http.Server)
	}
	f.servers[port] = srv
	f.mu.Unlock()
	go func() { _ = srv.Serve(ln) }()
	go func() {
		<-exited
		_ = srv.Close()
	}()
	f.t.Cleanup(func() { _ = srv.Close() })
	return nil
}

func (f *fakeRunner) Runs() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.runs)
}

func (f *fakeRunner) Starts() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.starts)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// makeTemplate creates a template directory called name under dir.
func makeTemplate(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	root := filepath.Join(dir, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		writeFile(t, filepath.Join(root, rel), content)
	}
	return root
}

// testConfig returns a valid Config rooted in a temporary directory, with
// timeouts short enough for unit tests.
func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		BaseDir:       filepath.Join(t.TempDir(), "runtime"),
		TemplatesRoot: t.TempDir(),
		PortMin:       20000,
		PortMax:       30000,
		PollInterval:  10 * time.Millisecond,
		PIDTimeout:    5 * time.Second,
		VerifyTimeout: 5 * time.Second,
		StopTimeout:   5 * time.Second,
		LockTimeout:   5 * time.Second,
		SetupTimeout:  30 * time.Second,
		LogLines:      100,
		FetchRetries:  5,
		Toolchain:     DefaultToolchain(),
	}
}

// args renders the arguments of every command for comparison.
func args(cmds []process.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
