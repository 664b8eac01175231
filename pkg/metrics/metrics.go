// Package metrics provides Prometheus metrics collection for the bot and its
// ops HTTP endpoints.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	subsystem = "wallet_bot"
)

// Outcome labels shared by flow and auth counters.
const (
	OutcomeAdvance   = "advance"
	OutcomeReprompt  = "reprompt"
	OutcomeComplete  = "complete"
	OutcomeFail      = "fail"
	OutcomeError     = "error"
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeLocked    = "locked"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the process registry. A nil *Metrics is valid and records
// nothing, so components can run without instrumentation.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPRequestsCounters     map[int]prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram
	httpMu                   sync.Mutex

	UpdatesCounter      *prometheus.CounterVec
	FlowOutcomeCounter  *prometheus.CounterVec
	AuthOutcomeCounter  *prometheus.CounterVec
	SweptSessionCounter prometheus.Counter
	SweepRunsCounter    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with the specified collectors enabled.
func NewMetrics(httpCounters, botCounters bool) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
	}
	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter)
		m.HTTPRequestsCounters = make(map[int]prometheus.Counter)

		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		})
		m.reg.MustRegister(m.HTTPDurationHistogram)
	}
	if botCounters {
		m.UpdatesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "updates_total",
			Help:      "Inbound chat updates by type",
		}, []string{"type"})
		m.FlowOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "flow_steps_total",
			Help:      "Flow step results by session kind and outcome",
		}, []string{"kind", "outcome"})
		m.AuthOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "auth_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"})
		m.SweptSessionCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions removed by the cleanup sweep",
		})
		m.SweepRunsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "sweep_runs_total",
			Help:      "Cleanup sweep runs by result",
		}, []string{"result"})
		m.reg.MustRegister(
			m.UpdatesCounter,
			m.FlowOutcomeCounter,
			m.AuthOutcomeCounter,
			m.SweptSessionCounter,
			m.SweepRunsCounter,
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// IncUpdate counts an inbound update of the given type.
func (m *Metrics) IncUpdate(updateType string) {
	if m == nil || m.UpdatesCounter == nil {
		return
	}
	m.UpdatesCounter.WithLabelValues(updateType).Inc()
}

// IncFlowOutcome counts a flow step result.
func (m *Metrics) IncFlowOutcome(kind, outcome string) {
	if m == nil || m.FlowOutcomeCounter == nil {
		return
	}
	m.FlowOutcomeCounter.WithLabelValues(kind, outcome).Inc()
}

// IncAuthOutcome counts a login attempt result.
func (m *Metrics) IncAuthOutcome(outcome string) {
	if m == nil || m.AuthOutcomeCounter == nil {
		return
	}
	m.AuthOutcomeCounter.WithLabelValues(outcome).Inc()
}

// ObserveSweep records one cleanup run.
func (m *Metrics) ObserveSweep(removed int64, err error) {
	if m == nil || m.SweepRunsCounter == nil {
		return
	}
	if err != nil {
		m.SweepRunsCounter.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.SweepRunsCounter.WithLabelValues(OutcomeSuccess).Inc()
	m.SweptSessionCounter.Add(float64(removed))
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.httpMu.Lock()
	defer m.httpMu.Unlock()
	c, ok := m.HTTPRequestsCounters[code]
	if !ok {
		c = newTotalHTTPReqMetric(code)
		m.reg.MustRegister(c)
		m.HTTPRequestsCounters[code] = c
	}
	c.Inc()
}

func newTotalHTTPReqMetric(code int) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: subsystem,
		Name:      fmt.Sprintf("total_%d_http_responses", code),
		Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
	})
}

// HTTPMiddleware returns a Chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.TotalHTTPRequestsCounter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
