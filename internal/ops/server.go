// Package ops serves the health probes and Prometheus metrics of the bot.
package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lewisedginton/wallet_chatbot/pkg/config"
	"github.com/lewisedginton/wallet_chatbot/pkg/health"
	"github.com/lewisedginton/wallet_chatbot/pkg/health/checkers"
	"github.com/lewisedginton/wallet_chatbot/pkg/httpmiddleware"
	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
	"github.com/lewisedginton/wallet_chatbot/pkg/metrics"
	"github.com/lewisedginton/wallet_chatbot/pkg/utils"
)

// Pinger reports whether the session store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the ops server dependencies.
type Config struct {
	HTTP    config.HTTPServerConfig
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Sessions is checked on every readiness probe.
	Sessions Pinger
	// FinanceHealthURL is checked on readiness when set.
	FinanceHealthURL string
	// HealthTimeout bounds each check. Defaults to 5s.
	HealthTimeout time.Duration
}

// Server is the ops HTTP server.
type Server struct {
	log     logger.Logger
	checker *health.Checker
	metrics *metrics.Metrics
	server  *http.Server
	started time.Time
	pprof   bool
}

// NewServer registers the checks and builds the router.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	checker := health.New(
		health.WithLogger(cfg.Logger),
		health.WithTimeout(cfg.HealthTimeout),
	)
	checker.Add(health.Liveness, health.NewCheckFunc("process", func(context.Context) error {
		return nil
	}))
	checker.Add(health.Readiness, health.NewCheckFunc("session_store", cfg.Sessions.Ping))
	if cfg.FinanceHealthURL != "" {
		checker.Add(health.Readiness, checkers.NewHTTPChecker("finance_api", cfg.FinanceHealthURL, nil))
	}

	s := &Server{
		log:     cfg.Logger.WithFields(logger.StringField("component", "ops")),
		checker: checker,
		metrics: cfg.Metrics,
		started: time.Now(),
		pprof:   cfg.HTTP.EnableProfiling,
	}
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           s.Router(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
	}
	return s, nil
}

// Router sets up all routes and middleware
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	httpmiddleware.ApplyToRouter(r, mw)
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware())
	}

	r.Get("/health/live", s.checker.Handler(health.Liveness))
	r.Get("/health/ready", s.checker.Handler(health.Readiness))
	r.Get("/health", s.overview)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	if s.pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

// Listen starts the server. See utils.ListenHTTP for the returned values.
func (s *Server) Listen() (chan error, func(), func(), error) {
	return utils.ListenHTTP(s.server, s.log)
}

type overview struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Liveness  bool   `json:"liveness"`
	Readiness bool   `json:"readiness"`
}

// overview combines both probes; it always answers 200 so dashboards can
// scrape it.
func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	live := s.checker.Run(r.Context(), health.Liveness)
	ready := s.checker.Run(r.Context(), health.Readiness)

	resp := overview{
		Status:    "healthy",
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Liveness:  live.Healthy,
		Readiness: ready.Healthy,
	}
	if !live.Healthy || !ready.Healthy {
		resp.Status = "degraded"
	}
	writeJSON(w, s.log, resp)
}
