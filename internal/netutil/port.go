package netutil

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrEmptyRange is returned by Allocate when min >= max.
const ErrEmptyRange = sentinel.Error("port range is empty")

// ErrExhausted is returned by Allocate when no free port was found.
const ErrExhausted = sentinel.Error("no free port found")

// maxPortRetries bounds the random probes made by one Allocate call.
const maxPortRetries = 20

// PortRegistry tracks ports reserved by this process.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	host  string
	log   *slog.Logger

	// bindable is swapped in tests.
	bindable func(host string, port int) bool
}

// NewPortRegistry creates a registry that bind-tests candidates on host.
// An empty host means 127.0.0.1. If logger is nil, slog.Default() is used.
func NewPortRegistry(host string, logger *slog.Logger) *PortRegistry {
	if host == "" {
		host = "127.0.0.1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports:    make(map[int]struct{}),
		host:     host,
		log:      logger,
		bindable: canBind,
	}
}

func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release makes port available to later Allocate calls.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// Allocate picks a random port in [lo, hi) that is neither reserved in the
// registry nor bound by another process, and reserves it. The caller must
// Release the port once the instance using it is gone for good.
func (r *PortRegistry) Allocate(lo, hi int) (int, error) {
	if lo >= hi {
		return 0, fmt.Errorf("allocate in [%d, %d): %w", lo, hi, ErrEmptyRange)
	}
	for range maxPortRetries {
		port := lo + rand.IntN(hi-lo) //nolint:gosec // G404: port choice is not security-sensitive
		if !r.reserve(port) {
			r.log.Debug("port already in registry, retrying", "port", port)
			continue
		}
		if !r.bindable(r.host, port) {
			r.log.Debug("port in use by another process, retrying", "port", port)
			r.Release(port)
			continue
		}
		return port, nil
	}
	return 0, fmt.Errorf("allocate in [%d, %d) after %d attempts: %w", lo, hi, maxPortRetries, ErrExhausted)
}

// canBind reports whether a TCP listener can be opened on host:port right now.
func canBind(host string, port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
