package health

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// Response is the JSON body of a probe endpoint.
type Response struct {
	Status  string                 `json:"status"`
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check inside Response.
type CheckStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Handler serves probe as JSON: 200 when healthy, 503 otherwise.
func (c *Checker) Handler(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context(), probe)

		resp := Response{Status: "healthy", Checks: make(map[string]CheckStatus, len(report.Checks))}
		code := http.StatusOK
		if !report.Healthy {
			resp.Status = "unhealthy"
			resp.Message = "failed: " + strings.Join(report.Failed(), ", ")
			code = http.StatusServiceUnavailable
		}
		for _, res := range report.Checks {
			cs := CheckStatus{Status: "ok", Latency: res.Latency.String()}
			if !res.Healthy {
				cs.Status = "error"
				cs.Error = res.Error
			}
			resp.Checks[res.Name] = cs
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			c.log.Error("Failed to encode health response", logger.ErrorField(err))
		}
	}
}
