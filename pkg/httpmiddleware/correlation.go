package httpmiddleware

import (
	"net/http"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

// CorrelationID keeps a valid UUID from the X-Correlation-ID header or
// replaces it with a fresh one, and stores the id in the request context.
// The id is echoed on the response.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, id := logger.EnsureHTTPCorrelationID(r)
			w.Header().Set(logger.CorrelationIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}
