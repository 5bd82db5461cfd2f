// Package health serves liveness and readiness probes backed by periodic
// checks.
//
// A check flips to unhealthy after FailureThreshold consecutive failures and
// back after SuccessThreshold consecutive successes, so a single slow ping
// does not take the storefront out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// Check reports a problem with a dependency.
type Check func(ctx context.Context) error

// Probe selects the endpoint a check contributes to.
type Probe int

const (
	// Liveness checks fail /livez.
	Liveness Probe = iota
	// Readiness checks fail /readyz.
	Readiness
)

// Thresholds controls flapping.
type Thresholds struct {
	FailureThreshold int
	SuccessThreshold int
}

// DefaultThresholds matches the Kubernetes probe defaults.
var DefaultThresholds = Thresholds{FailureThreshold: 3, SuccessThreshold: 1}

type check struct {
	name    string
	timeout time.Duration
	fn      Check
	th      Thresholds

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Only touched by the goroutine running the check.
	fails, oks int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.oks = 0
		if c.fails++; c.fails >= c.th.FailureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.lastErr.Store(nil)
	c.fails = 0
	if c.oks++; c.oks >= c.th.SuccessThreshold {
		c.healthy.Store(true)
	}
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if msg := c.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "unhealthy", true
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks map[Probe][]*check
	stop   context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{checks: make(map[Probe][]*check)}
}

// Add registers a check. Checks start healthy.
func (h *Health) Add(p Probe, name string, timeout time.Duration, fn Check) {
	h.AddWithThresholds(p, name, timeout, fn, DefaultThresholds)
}

// AddWithThresholds registers a check with custom thresholds.
func (h *Health) AddWithThresholds(p Probe, name string, timeout time.Duration, fn Check, th Thresholds) {
	c := &check{name: name, timeout: timeout, fn: fn, th: th}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks[p] = append(h.checks[p], c)
	h.mu.Unlock()
}

// Start runs every check immediately and then every interval, each in its
// own goroutine, until Stop or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	var all []*check
	for _, cs := range h.checks {
		all = append(all, cs...)
	}
	h.mu.Unlock()

	for _, c := range all {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				c.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts the check goroutines. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady toggles readiness, e.g. off while draining on shutdown.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(p Probe) map[string]string {
	h.mu.RLock()
	cs := h.checks[p]
	h.mu.RUnlock()

	out := make(map[string]string)
	for _, c := range cs {
		if msg, failed := c.failure(); failed {
			out[c.name] = msg
		}
	}
	return out
}

// Routes mounts /livez and /readyz.
func (h *Health) Routes(r chi.Router) {
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
}

// LiveEndpoint answers 200 unless a liveness check fails.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint answers 200 only when Ready.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status, text := http.StatusOK, "ok"
	if len(failures) > 0 {
		status, text = http.StatusServiceUnavailable, "unhealthy"
	}

	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str(text)
	if len(names) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
