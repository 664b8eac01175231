// Package health runs the liveness and readiness probes served by the ops
// HTTP server.
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// Probe names a group of checks.
type Probe string

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Probe = "liveness"
	// Readiness checks decide whether the bot can serve chats.
	Readiness Probe = "readiness"
)

// Check represents a single health check that can succeed or fail.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// Result is the outcome of one check.
type Result struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// Report is the outcome of one probe.
type Report struct {
	Healthy bool
	Checks  []Result
}

// Failed lists the names of the unhealthy checks.
func (r Report) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Healthy {
			out = append(out, c.Name)
		}
	}
	return out
}

// Checker holds the registered checks. A check only turns unhealthy after
// failureThreshold consecutive failures, so one slow database round trip
// does not flip readiness.
type Checker struct {
	mu        sync.Mutex
	checks    map[Probe][]Check
	failures  map[string]int
	timeout   time.Duration
	threshold int
	log       logger.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout bounds each check. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for failed checks.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		c.log = l
	}
}

// WithFailureThreshold sets the number of consecutive failures before a
// check is reported unhealthy. Default is 3.
func WithFailureThreshold(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// New creates a Checker with no checks.
func New(opts ...Option) *Checker {
	c := &Checker{
		checks:    make(map[Probe][]Check),
		failures:  make(map[string]int),
		timeout:   5 * time.Second,
		threshold: 3,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers check under probe.
func (c *Checker) Add(probe Probe, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[probe] = append(c.checks[probe], check)
}

// Run executes every check of probe concurrently. A probe without checks
// is healthy.
func (c *Checker) Run(ctx context.Context, probe Probe) Report {
	c.mu.Lock()
	checks := append([]Check(nil), c.checks[probe]...)
	c.mu.Unlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.run(ctx, check)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	report := Report{Healthy: true, Checks: results}
	for _, r := range results {
		report.Healthy = report.Healthy && r.Healthy
	}
	return report
}

func (c *Checker) run(parent context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	res := Result{Name: check.Name(), Healthy: true, Latency: time.Since(start)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.failures[res.Name] = 0
		return res
	}

	c.failures[res.Name]++
	failures := c.failures[res.Name]
	if failures < c.threshold {
		c.log.Debug("Health check failed below threshold",
			logger.StringField("check", res.Name),
			logger.IntField("failures", failures),
			logger.ErrorField(err),
		)
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	c.log.Warn("Health check failed",
		logger.StringField("check", res.Name),
		logger.IntField("failures", failures),
		logger.DurationField("latency", res.Latency),
		logger.ErrorField(err),
	)
	return res
}
