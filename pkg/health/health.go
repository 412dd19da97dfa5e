// Package health serves liveness and readiness probes.
//
// Every registered check runs on its own ticker. A check turns unhealthy
// after a number of consecutive failures and healthy again after a number of
// consecutive successes, so a single slow ping does not flap the probe.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind int

const (
	// Liveness checks fail /livez, which restarts the process.
	Liveness Kind = iota
	// Readiness checks fail /readyz, which takes the instance out of rotation.
	Readiness
)

// Option tunes a single check.
type Option func(*check)

// WithTimeout bounds one run of the check. Defaults to 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the check unhealthy
// and how many consecutive successes mark it healthy. Defaults to 3 and 1.
func WithThresholds(failures, successes int) Option {
	return func(c *check) {
		c.failAfter = max(failures, 1)
		c.passAfter = max(successes, 1)
	}
}

type result struct {
	healthy bool
	err     error
}

type check struct {
	name      string
	kind      Kind
	fn        CheckFunc
	timeout   time.Duration
	failAfter int
	passAfter int

	// fails and passes are only touched by the goroutine running the check.
	fails, passes int
	last          atomic.Pointer[result]
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	healthy := c.last.Load().healthy
	if err != nil {
		c.passes = 0
		c.fails++
		if c.fails >= c.failAfter {
			healthy = false
		}
	} else {
		c.fails = 0
		c.passes++
		if c.passes >= c.passAfter {
			healthy = true
		}
	}
	c.last.Store(&result{healthy: healthy, err: err})
}

// Health aggregates checks and the manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu     sync.Mutex
	checks []*check
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a check. Checks start healthy. Add must be called before
// Start.
func (h *Health) Add(kind Kind, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:      name,
		kind:      kind,
		fn:        fn,
		timeout:   5 * time.Second,
		failAfter: 3,
		passAfter: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last.Store(&result{healthy: true})

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every check immediately and then once per interval until Stop
// or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return
	}

	ctx, h.cancel = context.WithCancel(ctx)
	for _, c := range h.checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}()
	}
}

// Stop halts the check goroutines and waits for them to exit.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		h.wg.Wait()
	}
}

// SetReady flips the manual readiness switch. It is set after start-up and
// cleared when draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Ready reports whether the switch is on and every readiness check passes.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// LiveHandler serves /livez.
func (h *Health) LiveHandler(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyHandler serves /readyz.
func (h *Health) ReadyHandler(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// failures maps the name of every unhealthy check of kind to its last error.
func (h *Health) failures(kind Kind) map[string]string {
	h.mu.Lock()
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	out := make(map[string]string)
	for _, c := range checks {
		if c.kind != kind {
			continue
		}
		r := c.last.Load()
		if r.healthy {
			continue
		}
		msg := "check is unhealthy"
		if r.err != nil {
			msg = r.err.Error()
		}
		out[c.name] = msg
	}
	return out
}

// writeStatus writes {"status":"ok"} with 200, or {"status":"unhealthy",
// "checks":{...}} with 503.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failures[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
