// Package financetest provides an in-memory finance.Client for tests.
package financetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
)

// Call records one invocation of the fake.
type Call struct {
	Method    string
	Principal string
	Arg       any
}

// Fake is a scriptable finance.Client. Errors and Hooks are keyed by
// method name; a hook runs before the method returns, which lets tests
// interleave other work with an in-flight call.
type Fake struct {
	mu sync.Mutex

	Accounts      []finance.Account
	Banks         []finance.Bank
	Transactions  []finance.Transaction
	RecipientName string

	Errors map[string]error
	Hooks  map[string]func()

	calls  []Call
	nextID int
}

var _ finance.Client = (*Fake)(nil)

// New returns a fake with no accounts and a default recipient name.
func New() *Fake {
	return &Fake{
		RecipientName: "BUDI SANTOSO",
		Errors:        map[string]error{},
		Hooks:         map[string]func(){},
	}
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of one method.
func (f *Fake) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) enter(ctx context.Context, method string, arg any) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Principal: finance.PrincipalFromContext(ctx), Arg: arg})
	err := f.Errors[method]
	hook := f.Hooks[method]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *Fake) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *Fake) ListAccounts(ctx context.Context) ([]finance.Account, error) {
	if err := f.enter(ctx, "ListAccounts", nil); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]finance.Account(nil), f.Accounts...), nil
}

func (f *Fake) RequestOTP(ctx context.Context, req finance.OTPRequest) (*finance.OTPIssue, error) {
	if err := f.enter(ctx, "RequestOTP", req); err != nil {
		return nil, err
	}
	return &finance.OTPIssue{ReferenceID: f.id("ref")}, nil
}

func (f *Fake) VerifyOTP(ctx context.Context, req finance.VerifyRequest) (*finance.Account, error) {
	if err := f.enter(ctx, "VerifyOTP", req); err != nil {
		return nil, err
	}
	acct := finance.Account{ID: f.id("acct"), Provider: "DANA", Name: req.Name}
	f.mu.Lock()
	f.Accounts = append(f.Accounts, acct)
	f.mu.Unlock()
	return &acct, nil
}

func (f *Fake) RemoveAccount(ctx context.Context, accountID string) error {
	if err := f.enter(ctx, "RemoveAccount", accountID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.Accounts {
		if a.ID == accountID {
			f.Accounts = append(f.Accounts[:i], f.Accounts[i+1:]...)
			return nil
		}
	}
	return &finance.APIError{Op: "remove account", Status: 404, Message: "account not found"}
}

func (f *Fake) ListTransactions(ctx context.Context, filter finance.TransactionFilter) (*finance.TransactionPage, error) {
	if err := f.enter(ctx, "ListTransactions", filter); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []finance.Transaction
	for _, tx := range f.Transactions {
		if filter.Type != "" && !strings.EqualFold(tx.Type, filter.Type) {
			continue
		}
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.MinAmount > 0 && tx.Amount < filter.MinAmount {
			continue
		}
		matched = append(matched, tx)
	}

	limit, page := filter.Limit, filter.Page
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}
	total := len(matched)
	from := (page - 1) * limit
	if from > total {
		from = total
	}
	to := from + limit
	if to > total {
		to = total
	}
	return &finance.TransactionPage{
		Transactions: matched[from:to],
		Total:        total,
		Page:         page,
		TotalPages:   (total + limit - 1) / limit,
	}, nil
}

func (f *Fake) ListBanks(ctx context.Context, accountID string) ([]finance.Bank, error) {
	if err := f.enter(ctx, "ListBanks", accountID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]finance.Bank(nil), f.Banks...), nil
}

func (f *Fake) InitBankTransfer(ctx context.Context, req finance.TransferRequest) (*finance.TransferInit, error) {
	if err := f.enter(ctx, "InitBankTransfer", req); err != nil {
		return nil, err
	}
	return &finance.TransferInit{Token: f.id("trf"), RecipientName: f.RecipientName, Fee: 2500}, nil
}

func (f *Fake) CompleteBankTransfer(ctx context.Context, token string, amount int64) (*finance.Transaction, error) {
	if err := f.enter(ctx, "CompleteBankTransfer", token); err != nil {
		return nil, err
	}
	return &finance.Transaction{ID: f.id("tx"), Type: "transfer", Amount: amount, Status: "success"}, nil
}

func (f *Fake) PayQRIS(ctx context.Context, req finance.QRISPayment) (*finance.Transaction, error) {
	if err := f.enter(ctx, "PayQRIS", req); err != nil {
		return nil, err
	}
	return &finance.Transaction{ID: f.id("tx"), AccountID: req.AccountID, Type: "qris", Amount: req.Amount, Status: "success"}, nil
}
