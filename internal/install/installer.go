package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/giantswarm/appenv/internal/process"
)

// DefaultFetchRetries is how many extra times an attempt is repeated after a
// remote-fetch connection failure.
const DefaultFetchRetries = 5

var (
	fetchTimeout = regexp.MustCompile(`(?i)Gem::RemoteFetcher::FetchError.*connect`)

	missingLocally = []*regexp.Regexp{
		regexp.MustCompile(`(?is)could\s+not\s+find.*in\s+the\s+gems\s+available\s+on\s+this\s+machine`),
		regexp.MustCompile(`(?is)could\s+not\s+find.*in\s+any\s+of\s+the.*\s+sources`),
	}
)

// Config describes how to invoke the package manager.
type Config struct {
	// Command is the install command, e.g. ["bundle", "install"].
	Command []string
	// LocalFlag is appended for local-only attempts, e.g. "--local".
	LocalFlag string
	// Env and Scrub are passed through to every process.Command.
	Env   []string
	Scrub []string
	// FetchRetries overrides DefaultFetchRetries when positive.
	FetchRetries int
}

// Installer runs install steps. It is safe for concurrent use, though steps
// for one workspace are expected to run one at a time.
type Installer struct {
	cfg    Config
	runner process.Runner
	log    *slog.Logger
	// maxElapsed bounds the fetch retries of one attempt in time. Zero,
	// the default, leaves only FetchRetries and the context as limits.
	maxElapsed time.Duration

	mu   sync.Mutex
	done map[string]bool
}

// New returns an Installer. If logger is nil, slog.Default() is used.
func New(cfg Config, runner process.Runner, logger *slog.Logger) *Installer {
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = DefaultFetchRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{cfg: cfg, runner: runner, log: logger, done: make(map[string]bool)}
}

// Ran reports whether step has completed successfully before.
func (i *Installer) Ran(step string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done[step]
}

func (i *Installer) markRan(step string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.done[step] = true
}

// Install runs step in dir. The failure is the *process.CommandError of the
// last attempt, wrapped with the step name.
func (i *Installer) Install(ctx context.Context, step, dir string) error {
	allowNetwork := !i.Ran(step)

	out, err := i.attempt(ctx, step, dir, true)
	if err != nil && allowNetwork && NeedsNetwork(out) {
		i.log.Info("dependencies missing locally, retrying with network access", "step", step, "dir", dir)
		_, err = i.attempt(ctx, step, dir, false)
	}
	if err != nil {
		return fmt.Errorf("install step %q: %w", step, err)
	}

	i.markRan(step)
	return nil
}

// attempt runs one install command, repeating it while the output shows a
// remote-fetch connection failure.
func (i *Installer) attempt(ctx context.Context, step, dir string, local bool) (string, error) {
	args := slices.Clone(i.cfg.Command)
	if local && i.cfg.LocalFlag != "" {
		args = append(args, i.cfg.LocalFlag)
	}
	cmd := process.Command{Dir: dir, Args: args, Env: i.cfg.Env, Scrub: i.cfg.Scrub}

	var lastOut string
	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		out, err := i.runner.Run(ctx, cmd)
		lastOut = out
		if err == nil {
			return struct{}{}, nil
		}
		if IsFetchTimeout(out) {
			i.log.Warn("remote fetch failed to connect, retrying", "step", step, "attempt", tries)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(i.cfg.FetchRetries+1)), //nolint:gosec // G115: positive by construction
		// Without this, backoff.Retry stops after 15 minutes.
		backoff.WithMaxElapsedTime(i.maxElapsed),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return lastOut, err
}

// IsFetchTimeout reports whether output shows a connection failure while
// fetching from the remote gem source.
func IsFetchTimeout(output string) bool {
	return fetchTimeout.MatchString(output)
}

// NeedsNetwork reports whether output shows dependencies that could not be
// resolved from what is installed locally.
func NeedsNetwork(output string) bool {
	for _, re := range missingLocally {
		if re.MatchString(output) {
			return true
		}
	}
	return false
}
