// Package finance is the boundary to the e-wallet financial API.
package finance

import (
	"context"
	"errors"
	"fmt"
)

// Client is everything the bot asks of the financial API. Calls act on
// behalf of the principal carried in ctx (see WithPrincipal).
type Client interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	RequestOTP(ctx context.Context, req OTPRequest) (*OTPIssue, error)
	VerifyOTP(ctx context.Context, req VerifyRequest) (*Account, error)
	RemoveAccount(ctx context.Context, accountID string) error
	ListTransactions(ctx context.Context, filter TransactionFilter) (*TransactionPage, error)
	ListBanks(ctx context.Context, accountID string) ([]Bank, error)
	InitBankTransfer(ctx context.Context, req TransferRequest) (*TransferInit, error)
	CompleteBankTransfer(ctx context.Context, token string, amount int64) (*Transaction, error)
	PayQRIS(ctx context.Context, req QRISPayment) (*Transaction, error)
}

// APIError is a failed call to the financial API, including transport
// failures where Status is zero.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("finance %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("finance %s: %d %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("finance %s: status %d", e.Op, e.Status)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAPIError reports whether err came from the financial API.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

type principalKey struct{}

// WithPrincipal attaches the chat identity the API should act for.
func WithPrincipal(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, principalKey{}, chatID)
}

// PrincipalFromContext returns the principal set by WithPrincipal.
func PrincipalFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(principalKey{}).(string); ok {
		return v
	}
	return ""
}
