package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lewisedginton/wallet_chatbot/pkg/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	tokenLifetime    = 2 * time.Minute
	tokenIssuer      = "wallet-bot"
	headerAPIKey     = "X-API-Key"
	authSchemeBearer = "Bearer "
)

// HTTPConfig holds configuration for HTTPClient.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	SigningKey string // HS256 key for per-principal bearer tokens
	Timeout    time.Duration
	Logger     logger.Logger
	Transport  http.RoundTripper
}

// HTTPClient talks JSON to the financial API.
type HTTPClient struct {
	baseURL    *url.URL
	apiKey     string
	signingKey []byte
	httpClient *http.Client
	log        logger.Logger
	now        func() time.Time
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the API at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("finance base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse finance base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &HTTPClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		signingKey: []byte(cfg.SigningKey),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		log: cfg.Logger,
		now: time.Now,
	}, nil
}

func (c *HTTPClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var resp struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.do(ctx, "list accounts", http.MethodGet, "/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *HTTPClient) RequestOTP(ctx context.Context, req OTPRequest) (*OTPIssue, error) {
	var issue OTPIssue
	if err := c.do(ctx, "request otp", http.MethodPost, "/accounts/otp", nil, req, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, req VerifyRequest) (*Account, error) {
	var acct Account
	if err := c.do(ctx, "verify otp", http.MethodPost, "/accounts/verify", nil, req, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

func (c *HTTPClient) RemoveAccount(ctx context.Context, accountID string) error {
	return c.do(ctx, "remove account", http.MethodDelete, "/accounts/"+accountID, nil, nil, nil)
}

func (c *HTTPClient) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	q := url.Values{}
	setInt := func(k string, v int64) {
		if v > 0 {
			q.Set(k, strconv.FormatInt(v, 10))
		}
	}
	setString := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	setInt("limit", int64(f.Limit))
	setInt("page", int64(f.Page))
	setInt("days", int64(f.Days))
	setString("type", f.Type)
	setString("provider", f.Provider)
	setString("account_id", f.AccountID)
	setInt("min_amount", f.MinAmount)
	setInt("max_amount", f.MaxAmount)
	setString("search", f.Search)

	var page TransactionPage
	if err := c.do(ctx, "list transactions", http.MethodGet, "/transactions", q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) ListBanks(ctx context.Context, accountID string) ([]Bank, error) {
	var resp struct {
		Banks []Bank `json:"banks"`
	}
	path := "/accounts/" + accountID + "/banks"
	if err := c.do(ctx, "list banks", http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Banks, nil
}

func (c *HTTPClient) InitBankTransfer(ctx context.Context, req TransferRequest) (*TransferInit, error) {
	var init TransferInit
	if err := c.do(ctx, "init transfer", http.MethodPost, "/transfers/bank/init", nil, req, &init); err != nil {
		return nil, err
	}
	return &init, nil
}

func (c *HTTPClient) CompleteBankTransfer(ctx context.Context, token string, amount int64) (*Transaction, error) {
	body := struct {
		Token  string `json:"token"`
		Amount int64  `json:"amount"`
	}{Token: token, Amount: amount}

	var tx Transaction
	if err := c.do(ctx, "complete transfer", http.MethodPost, "/transfers/bank/complete", nil, body, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *HTTPClient) PayQRIS(ctx context.Context, req QRISPayment) (*Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, "pay qris", http.MethodPost, "/payments/qris", nil, req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return &APIError{Op: op, Err: err}
	}
	if id := logger.GetCorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(logger.CorrelationIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("Finance API request failed",
			logger.StringField("op", op),
			logger.ErrorField(err))
		return &APIError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("Finance API request",
		logger.StringField("op", op),
		logger.IntField("status", resp.StatusCode),
		logger.DurationField("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *HTTPClient) authorize(ctx context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	if len(c.signingKey) == 0 {
		return nil
	}
	principal := PrincipalFromContext(ctx)
	if principal == "" {
		return nil
	}
	token, err := c.principalToken(principal)
	if err != nil {
		return fmt.Errorf("sign principal token: %w", err)
	}
	req.Header.Set("Authorization", authSchemeBearer+token)
	return nil
}

func (c *HTTPClient) principalToken(principal string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   principal,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
}

func decodeAPIError(op string, resp *http.Response) error {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
