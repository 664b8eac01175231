package flows

import (
	"strings"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
)

// Bank selection limits.
const (
	MinBankQueryLength = 2
	MaxSearchResults   = 10
	BankPageSize       = 15
)

// fallbackPopularCodes are used when the API flags no bank as popular.
var fallbackPopularCodes = []string{"014", "008", "002", "009", "451", "022"}

// SearchBanks returns every bank whose name or code contains query, case
// insensitively. Queries shorter than MinBankQueryLength are rejected
// without looking at banks.
func SearchBanks(banks []finance.Bank, query string) ([]finance.Bank, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < MinBankQueryLength {
		return nil, &ValidationError{
			Field:   "bank_query",
			Message: "Type at least 2 characters of the bank name or code.",
		}
	}

	var out []finance.Bank
	for _, b := range banks {
		if strings.Contains(strings.ToLower(b.Name), q) || strings.Contains(strings.ToLower(b.Code), q) {
			out = append(out, b)
		}
	}
	return out, nil
}

// PopularBanks returns the banks flagged popular, or the fallback list
// when none are flagged.
func PopularBanks(banks []finance.Bank) []finance.Bank {
	var out []finance.Bank
	for _, b := range banks {
		if b.Popular {
			out = append(out, b)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, code := range fallbackPopularCodes {
		if b, ok := findBank(banks, code); ok {
			out = append(out, b)
		}
	}
	return out
}

// BankPage returns the 1-based page of banks, clamping page into range,
// together with the page actually used and the page count.
func BankPage(banks []finance.Bank, page int) ([]finance.Bank, int, int) {
	total := (len(banks) + BankPageSize - 1) / BankPageSize
	if total == 0 {
		return nil, 1, 0
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	from := (page - 1) * BankPageSize
	to := from + BankPageSize
	if to > len(banks) {
		to = len(banks)
	}
	return banks[from:to], page, total
}

func findBank(banks []finance.Bank, code string) (finance.Bank, bool) {
	for _, b := range banks {
		if b.Code == code {
			return b, true
		}
	}
	return finance.Bank{}, false
}
