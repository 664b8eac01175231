package httpmiddleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// HTTPLogger provides HTTP request/response logging middleware
type HTTPLogger struct {
	logger logger.Logger
	// quiet paths are logged at debug level; probes hit them constantly.
	quiet []string
}

// NewHTTPLogger creates a new HTTP logger middleware. Requests whose path
// starts with one of quietPrefixes are logged at debug level.
func NewHTTPLogger(log logger.Logger, quietPrefixes ...string) *HTTPLogger {
	return &HTTPLogger{logger: log, quiet: quietPrefixes}
}

// Middleware returns the HTTP logging middleware
func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log := h.RequestLogger(r).WithFields(
			logger.HTTPStatusField(status),
			logger.IntField("response_bytes", ww.BytesWritten()),
			logger.DurationField("duration", time.Since(start)),
		)
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request failed")
		case h.isQuiet(r.URL.Path):
			log.Debug("HTTP request served")
		default:
			log.Info("HTTP request served")
		}
	})
}

// RequestLogger creates a logger with request context for use in handlers
func (h *HTTPLogger) RequestLogger(r *http.Request) logger.Logger {
	return logger.FromContext(r.Context(), h.logger).WithFields(
		logger.ClientIPField(r.RemoteAddr),
		logger.HTTPMethodField(r.Method),
		logger.HTTPPathField(r.URL.Path),
	)
}

func (h *HTTPLogger) isQuiet(path string) bool {
	for _, p := range h.quiet {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
