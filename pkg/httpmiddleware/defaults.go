package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger        logger.Logger   // Required for logging middleware
	QuietPrefixes []string        // Paths logged at debug level
	CORS          *CORSConfig     // CORS configuration
	Security      *secure.Options // Security headers configuration
	Timeout       time.Duration   // Request timeout duration

	EnableCorrelationID bool
	EnableLogging       bool // Requires Logger
	EnableRecovery      bool
	EnableCORS          bool
	EnableSecurity      bool
	EnableHeartbeat     bool // Adds /ping
	EnableRealIP        bool
	EnableTimeout       bool
}

// DefaultConfig returns a production-ready middleware configuration.
// Logging is disabled by default - set Logger and EnableLogging=true to enable.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS:          &corsConfig,
		Timeout:       30 * time.Second,
		QuietPrefixes: []string{"/health", "/metrics", "/ping"},

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          false,
		EnableSecurity:      true,
		EnableHeartbeat:     true,
		EnableRealIP:        true,
		EnableTimeout:       true,
	}
}

// ApplyToRouter applies the configured middleware to a Chi router. The first
// middleware applied is the outermost:
//
//	CorrelationID, Security, RealIP, Logging, Recovery, CORS, Timeout, Heartbeat
func ApplyToRouter(router chi.Router, config Config) {
	if config.EnableCorrelationID {
		router.Use(CorrelationID())
	}
	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}
	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if config.EnableLogging && config.Logger != nil {
		router.Use(NewHTTPLogger(config.Logger, config.QuietPrefixes...).Middleware)
	}
	if config.EnableRecovery {
		router.Use(Recovery(config.Logger))
	}
	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}
	if config.EnableTimeout && config.Timeout > 0 {
		router.Use(middleware.Timeout(config.Timeout))
	}
	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// WithLogger is a convenience function that applies middleware with logging enabled.
// Uses DefaultConfig() with the provided logger and EnableLogging=true.
func WithLogger(router chi.Router, log logger.Logger) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = true
	ApplyToRouter(router, config)
}
