package install

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/appenv/internal/process"
)

type result struct {
	out string
	err bool
}

// scriptedRunner answers Run calls from a queue per mode ("local"/"network")
// and records every command it saw.
type scriptedRunner struct {
	delay   time.Duration // per Run call
	mu      sync.Mutex
	local   []result
	network []result
	calls   []string
}

func (r *scriptedRunner) Run(_ context.Context, c process.Command) (string, error) {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, c.String())
	queue := &r.network
	if slices.Contains(c.Args, "--local") {
		queue = &r.local
	}
	if len(*queue) == 0 {
		return "", nil
	}
	res := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	if res.err {
		return res.out, &process.CommandError{Dir: c.Dir, Command: c.String(), ExitCode: 1, Output: res.out, Err: errors.New("exit status 1")}
	}
	return res.out, nil
}

func (r *scriptedRunner) Start(process.Command, string) (*process.Spawned, error) {
	return nil, errors.New("not supported")
}

func (r *scriptedRunner) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if c == prefix {
			n++
		}
	}
	return n
}

const (
	missingGems = "Could not find rails-4.2.0 in any of the sources"
	fetchFailed = "Gem::RemoteFetcher::FetchError: Errno::ETIMEDOUT: Connection timed out - connect(2)"
	otherFail   = "Your Ruby version is 1.9.3, but your Gemfile specified 2.0"
)

func newTestInstaller(r *scriptedRunner) *Installer {
	return New(Config{Command: []string{"bundle", "install"}, LocalFlag: "--local"}, r, nil)
}

func TestInstaller_Install(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		local        []result
		network      []result
		alreadyRan   bool
		wantErr      bool
		wantLocal    int
		wantNetwork  int
		wantOutputIn string
	}{
		"local succeeds": {
			local:     []result{{out: "Bundle complete!"}},
			wantLocal: 1,
		},
		"falls back to network on first run": {
			local:       []result{{out: missingGems, err: true}},
			network:     []result{{out: "Bundle complete!"}},
			wantLocal:   1,
			wantNetwork: 1,
		},
		"no network on later runs": {
			local:        []result{{out: missingGems, err: true}},
			alreadyRan:   true,
			wantErr:      true,
			wantLocal:    1,
			wantOutputIn: "Could not find rails-4.2.0",
		},
		"unrelated failure is not retried": {
			local:        []result{{out: otherFail, err: true}},
			wantErr:      true,
			wantLocal:    1,
			wantOutputIn: "Your Ruby version",
		},
		"fetch timeout retried then succeeds": {
			local:     []result{{out: fetchFailed, err: true}, {out: fetchFailed, err: true}, {out: "ok"}},
			wantLocal: 3,
		},
		"fetch timeout gives up after five retries": {
			local:        []result{{out: fetchFailed, err: true}},
			wantErr:      true,
			wantLocal:    6,
			wantOutputIn: "FetchError",
		},
		"network attempt also retries fetch timeouts": {
			local:       []result{{out: missingGems, err: true}},
			network:     []result{{out: fetchFailed, err: true}},
			wantErr:     true,
			wantLocal:   1,
			wantNetwork: 6,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := &scriptedRunner{local: tc.local, network: tc.network}
			inst := newTestInstaller(r)
			if tc.alreadyRan {
				inst.markRan("primary")
			}

			err := inst.Install(context.Background(), "primary", t.TempDir())
			if tc.wantErr != (err != nil) {
				t.Fatalf("Install() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got := r.count("bundle install --local"); got != tc.wantLocal {
				t.Errorf("local attempts = %d, want %d", got, tc.wantLocal)
			}
			if got := r.count("bundle install"); got != tc.wantNetwork {
				t.Errorf("network attempts = %d, want %d", got, tc.wantNetwork)
			}
			if err == nil {
				if !inst.Ran("primary") {
					t.Error("step should be recorded after success")
				}
				return
			}
			var cmdErr *process.CommandError
			if !errors.As(err, &cmdErr) {
				t.Fatalf("error %T does not wrap *process.CommandError", err)
			}
			if tc.wantOutputIn != "" && !strings.Contains(cmdErr.Output, tc.wantOutputIn) {
				t.Errorf("output = %q, want it to contain %q", cmdErr.Output, tc.wantOutputIn)
			}
			if !strings.Contains(err.Error(), `"primary"`) {
				t.Errorf("error %q should name the step", err)
			}
		})
	}
}

func TestInstaller_FetchRetriesBoundedByCountNotTime(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		maxElapsed time.Duration // zero keeps what New sets
		wantRuns   int
	}{
		"default runs every retry": {wantRuns: DefaultFetchRetries + 1},
		"elapsed limit cuts retries short": {
			maxElapsed: time.Millisecond,
			wantRuns:   1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := &scriptedRunner{delay: 5 * time.Millisecond, local: []result{{out: fetchFailed, err: true}}}
			inst := newTestInstaller(r)
			if tc.maxElapsed != 0 {
				inst.maxElapsed = tc.maxElapsed
			} else if inst.maxElapsed != 0 {
				t.Fatalf("New() set maxElapsed = %v, want no time limit", inst.maxElapsed)
			}

			if err := inst.Install(context.Background(), "bootstrap", t.TempDir()); err == nil {
				t.Fatal("expected error")
			}
			if got := r.count("bundle install --local"); got != tc.wantRuns {
				t.Errorf("ran %d times, want %d", got, tc.wantRuns)
			}
		})
	}
}

func TestInstaller_StepsTrackedSeparately(t *testing.T) {
	t.Parallel()

	r := &scriptedRunner{local: []result{{out: "ok"}}}
	inst := newTestInstaller(r)

	if err := inst.Install(context.Background(), "bootstrap", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if !inst.Ran("bootstrap") || inst.Ran("primary") {
		t.Errorf("Ran(bootstrap)=%v Ran(primary)=%v, want true/false", inst.Ran("bootstrap"), inst.Ran("primary"))
	}
}

func TestInstaller_FailedStepNotRecorded(t *testing.T) {
	t.Parallel()

	r := &scriptedRunner{local: []result{{out: otherFail, err: true}}}
	inst := newTestInstaller(r)

	if err := inst.Install(context.Background(), "bootstrap", t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
	if inst.Ran("bootstrap") {
		t.Error("failed step must not be recorded")
	}
}

func TestOutputClassifiers(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		out           string
		wantNetwork   bool
		wantTransient bool
	}{
		"any of the sources": {out: missingGems, wantNetwork: true},
		"available on this machine": {
			out:         "Could not find gem 'rails (= 4.2.0)' in the gems available on this machine.",
			wantNetwork: true,
		},
		"multiline match": {
			out:         "Could not find gem 'rails (= 4.2.0)'\nin the gems available on this machine.",
			wantNetwork: true,
		},
		"fetch timeout":   {out: fetchFailed, wantTransient: true},
		"fetch lowercase": {out: "gem::remotefetcher::fetcherror: unable to connect", wantTransient: true},
		"unrelated":       {out: otherFail},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := NeedsNetwork(tc.out); got != tc.wantNetwork {
				t.Errorf("NeedsNetwork() = %v, want %v", got, tc.wantNetwork)
			}
			if got := IsFetchTimeout(tc.out); got != tc.wantTransient {
				t.Errorf("IsFetchTimeout() = %v, want %v", got, tc.wantTransient)
			}
		})
	}
}
