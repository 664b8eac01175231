package finance

import (
	"fmt"
	"time"
)

// Account is an e-wallet linked to the principal.
type Account struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Balance  int64  `json:"balance"`
}

// Label is the short form shown in account pickers.
func (a Account) Label() string {
	if a.Name == "" {
		return fmt.Sprintf("%s %s", a.Provider, a.Phone)
	}
	return fmt.Sprintf("%s - %s", a.Provider, a.Name)
}

// OTPChannel selects how a one-time password is delivered.
type OTPChannel string

const (
	ChannelSMS      OTPChannel = "sms"
	ChannelWhatsApp OTPChannel = "whatsapp"
)

// OTPRequest asks the API to start linking a new wallet.
type OTPRequest struct {
	Phone   string     `json:"phone"`
	PIN     string     `json:"pin"`
	Channel OTPChannel `json:"channel"`
}

// OTPIssue correlates the OTP sent by RequestOTP with its verification.
type OTPIssue struct {
	ReferenceID string `json:"reference_id"`
}

// VerifyRequest finalises wallet linkage.
type VerifyRequest struct {
	ReferenceID string `json:"reference_id"`
	OTP         string `json:"otp"`
	Name        string `json:"name"`
}

// Bank is a transfer destination institution.
type Bank struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Popular bool   `json:"popular"`
}

// TransferRequest starts a bank transfer.
type TransferRequest struct {
	AccountID     string `json:"account_id"`
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"amount"`
}

// TransferInit is the verified destination of a pending transfer.
type TransferInit struct {
	Token         string `json:"token"`
	RecipientName string `json:"recipient_name"`
	Fee           int64  `json:"fee"`
}

// QRISPayment pays a merchant QR code. Image holds the raw photo bytes.
type QRISPayment struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Image     []byte `json:"image"`
}

// Transaction is one ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Type        string    `json:"type"`
	Provider    string    `json:"provider"`
	Amount      int64     `json:"amount"`
	Fee         int64     `json:"fee"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransactionFilter narrows ListTransactions. Zero values are omitted.
type TransactionFilter struct {
	Limit     int
	Page      int
	Days      int
	Type      string
	Provider  string
	AccountID string
	MinAmount int64
	MaxAmount int64
	Search    string
}

// TransactionPage is one page of results with paging metadata.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
}
