package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"
)

// CORSConfig represents CORS configuration options
type CORSConfig struct {
	AllowedMethods []string
	AllowedHeaders []string
	AllowedOrigins []string
	MaxAge         int
}

// DefaultCORSConfig allows read-only cross-origin access, which is all the
// ops endpoints serve.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Accept", "X-Correlation-ID"},
		AllowedOrigins: []string{"https://*", "http://*"},
		MaxAge:         300,
	}
}

// CORS middleware configures Cross-Origin Resource Sharing
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedMethods: config.AllowedMethods,
		AllowedHeaders: config.AllowedHeaders,
		AllowedOrigins: config.AllowedOrigins,
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         config.MaxAge,
	})
}

// Security middleware adds security headers
func Security(opts *secure.Options) func(http.Handler) http.Handler {
	var s *secure.Secure
	if opts == nil {
		s = secure.New(DefaultSecurityOptions())
	} else {
		s = secure.New(*opts)
	}
	return s.Handler
}

// DefaultSecurityOptions suits a plain-HTTP service behind a proxy.
func DefaultSecurityOptions() secure.Options {
	return secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}
}
