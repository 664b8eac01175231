package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

func TestCorrelationID(t *testing.T) {
	var headerID, contextID string
	handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerID = r.Header.Get(logger.CorrelationIDHeader)
		contextID = logger.GetCorrelationIDFromContext(r.Context())
	}))

	serve := func(incoming string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		if incoming != "" {
			req.Header.Set(logger.CorrelationIDHeader, incoming)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("generates an id when none is sent", func(t *testing.T) {
		rec := serve("")
		_, err := uuid.Parse(headerID)
		require.NoError(t, err)
		assert.Equal(t, headerID, contextID)
		assert.Equal(t, headerID, rec.Header().Get(logger.CorrelationIDHeader))
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		existing := uuid.New().String()
		serve(existing)
		assert.Equal(t, existing, headerID)
		assert.Equal(t, existing, contextID)
	})

	for _, bad := range []string{"not-a-uuid", "123e4567-e89b-12d3-a456-42661417400"} {
		t.Run("replaces "+bad, func(t *testing.T) {
			serve(bad)
			assert.NotEqual(t, bad, headerID)
			_, err := uuid.Parse(headerID)
			assert.NoError(t, err)
			assert.Equal(t, headerID, contextID)
		})
	}

	t.Run("unique per request", func(t *testing.T) {
		serve("")
		first := headerID
		serve("")
		assert.NotEqual(t, first, headerID)
	})
}
