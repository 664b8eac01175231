package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HTTPServerConfig holds the ops HTTP server settings.
type HTTPServerConfig struct {
	// Port 0 disables the server.
	Port           int           `env:"HTTP_PORT" yaml:"port" default:"8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" yaml:"read_timeout" default:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" yaml:"write_timeout" default:"15s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`
	MaxHeaderBytes int           `env:"HTTP_MAX_HEADER_BYTES" yaml:"max_header_bytes" default:"1048576"`
	// EnableProfiling mounts net/http/pprof under /debug.
	EnableProfiling bool `env:"HTTP_ENABLE_PPROF" yaml:"enable_profiling"`
}

// Enabled reports whether the server should listen.
func (h HTTPServerConfig) Enabled() bool {
	return h.Port > 0
}

// Addr is the listen address.
func (h HTTPServerConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

// Validate checks HTTPServerConfig for valid port range
func (h HTTPServerConfig) Validate() error {
	var result error
	if h.Port < 0 || h.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http port must be between 0-65535, got %d", h.Port))
	}
	return result
}
