// Package checkers holds health checks for external dependencies.
package checkers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPChecker reports an HTTP dependency unhealthy when it cannot be
// reached or answers with a 5xx status.
type HTTPChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPChecker checks url under name. A nil client gets a 10 second timeout.
func NewHTTPChecker(name, url string, client *http.Client) *HTTPChecker {
	if name == "" {
		name = url
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPChecker{name: name, url: url, client: client}
}

func (h *HTTPChecker) Name() string {
	return h.name
}

func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
	}
	return nil
}
