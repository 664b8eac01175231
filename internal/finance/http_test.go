package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "signing-key" //nolint:gosec // Test constant, not a real credential.

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(HTTPConfig{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "key-123",
		SigningKey: testSigningKey,
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{})
	assert.Error(t, err)
}

func TestListAccounts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/accounts", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("X-API-Key"))

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(testSigningKey), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "777", claims.Subject)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"accounts": []Account{{ID: "a1", Provider: "DANA", Name: "Utama", Balance: 150000}},
		})
	})

	accounts, err := c.ListAccounts(WithPrincipal(context.Background(), "777"))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "DANA - Utama", accounts[0].Label())
	assert.Equal(t, int64(150000), accounts[0].Balance)
}

func TestNoPrincipalNoBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"banks":[{"code":"014","name":"BCA","popular":true}]}`))
	})

	banks, err := c.ListBanks(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, []Bank{{Code: "014", Name: "BCA", Popular: true}}, banks)
}

func TestListTransactions_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "transfer", q.Get("type"))
		assert.Equal(t, "10000", q.Get("min_amount"))
		assert.Equal(t, "pulsa", q.Get("search"))
		assert.False(t, q.Has("days"))
		assert.False(t, q.Has("max_amount"))

		_, _ = w.Write([]byte(`{"transactions":[{"id":"t1","amount":20000}],"total":6,"page":2,"total_pages":2}`))
	})

	page, err := c.ListTransactions(context.Background(), TransactionFilter{
		Limit: 5, Page: 2, Type: "transfer", MinAmount: 10000, Search: "pulsa",
	})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Transactions, 1)
}

func TestPostBodies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/v1/accounts/otp":
			assert.Equal(t, "whatsapp", body["channel"])
			_, _ = w.Write([]byte(`{"reference_id":"ref-9"}`))
		case "/v1/transfers/bank/complete":
			assert.Equal(t, "tok", body["token"])
			assert.Equal(t, float64(50000), body["amount"])
			_, _ = w.Write([]byte(`{"id":"tx-1","amount":50000,"status":"success"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	issue, err := c.RequestOTP(context.Background(), OTPRequest{Phone: "81234567890", PIN: "123456", Channel: ChannelWhatsApp})
	require.NoError(t, err)
	assert.Equal(t, "ref-9", issue.ReferenceID)

	tx, err := c.CompleteBankTransfer(context.Background(), "tok", 50000)
	require.NoError(t, err)
	assert.Equal(t, "success", tx.Status)
}

func TestRemoveAccount_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v1/accounts/a1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.RemoveAccount(context.Background(), "a1"))
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		code    string
	}{
		{name: "structured", status: 422, body: `{"code":"INVALID_ACCOUNT","message":"rekening tidak ditemukan"}`, wantMsg: "rekening tidak ditemukan", code: "INVALID_ACCOUNT"},
		{name: "error field", status: 400, body: `{"error":"bad amount"}`, wantMsg: "bad amount"},
		{name: "plain text", status: 502, body: "upstream down\n", wantMsg: "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.InitBankTransfer(context.Background(), TransferRequest{Amount: 10000})
			require.Error(t, err)
			assert.True(t, IsAPIError(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestTransportError(t *testing.T) {
	c, err := NewHTTPClient(HTTPConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ListAccounts(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.Error(t, apiErr.Unwrap())
}
