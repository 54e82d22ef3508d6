package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/giantswarm/appenv/internal/process"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// Defaults used when a Probe field is zero.
const (
	DefaultInterval = 100 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

// ErrUnexpectedStatus is recorded when the endpoint answers with a status
// other than 200.
const ErrUnexpectedStatus = sentinel.Error("unexpected status")

// Probe polls URL until it answers 200. The 200 body must parse as a banner;
// any other body fails the probe at once.
type Probe struct {
	URL      string
	Parser   *BannerParser
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client // defaults to a client with a per-request timeout
	Logger   *slog.Logger
	// Exited, if set, aborts the probe when the server process exits.
	Exited <-chan struct{}
}

// Error is returned when the probe gives up. Last holds the most recent
// transient failure or mismatch observed before the timeout.
type Error struct {
	URL      string
	Elapsed  time.Duration
	Attempts int
	Last     error
	Err      error
}

func (e *Error) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("probe %s failed after %s (%d attempts): %v; last error: %v",
			e.URL, e.Elapsed.Round(time.Millisecond), e.Attempts, e.Err, e.Last)
	}
	return fmt.Sprintf("probe %s failed after %s (%d attempts): %v",
		e.URL, e.Elapsed.Round(time.Millisecond), e.Attempts, e.Err)
}

// Unwrap exposes both the terminating error and the last observed failure.
func (e *Error) Unwrap() []error {
	if e.Last == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Last}
}

// Run polls until success, a fatal transport error, or the timeout. The first
// request is made after one interval.
func (p *Probe) Run(ctx context.Context) (Banner, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	var (
		mu       sync.Mutex
		last     error
		banner   Banner
		attempts int
	)
	start := time.Now()

	err := process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      interval,
		Timeout:       timeout,
		Name:          "status endpoint",
		Logger:        log,
		ProcessExited: p.Exited,
	}, func(pollCtx context.Context, attempt int) (bool, error) {
		b, err := p.check(pollCtx, client)
		mu.Lock()
		defer mu.Unlock()
		attempts = attempt
		if err == nil {
			banner = b
			return true, nil
		}
		if !transient(err) {
			return false, err
		}
		last = err
		log.Debug("status endpoint not ready", "url", p.URL, "attempt", attempt, "error", err)
		return false, nil
	})
	if err != nil {
		mu.Lock()
		defer mu.Unlock()
		return Banner{}, &Error{URL: p.URL, Elapsed: time.Since(start), Attempts: attempts, Last: last, Err: err}
	}
	return banner, nil
}

// errNotReady marks a response received before the server is ready, such as
// a 502 from a booting server; polling continues.
type errNotReady struct{ err error }

func (e errNotReady) Error() string { return e.err.Error() }
func (e errNotReady) Unwrap() error { return e.err }

func (p *Probe) check(ctx context.Context, client *http.Client) (Banner, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Banner{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Banner{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Banner{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Banner{}, errNotReady{fmt.Errorf("%w %d: %q", ErrUnexpectedStatus, resp.StatusCode, truncate(string(body), 200))}
	}
	// A 200 with the wrong body means the server is up but is not the
	// application we expected; waiting will not change that.
	return p.Parser.Parse(string(body))
}

// transient reports whether err means "try again": the server is not
// listening yet, dropped the connection while booting, or has not started
// answering with 200.
func transient(err error) bool {
	var nr errNotReady
	switch {
	case errors.As(err, &nr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// The per-poll context ended; WaitReady reports the timeout itself.
		return true
	}
	return false
}
