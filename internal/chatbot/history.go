package chatbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/flows"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

const historyUsage = "Usage: /history [limit=N] [page=N] [days=N] [type=transfer|qris] " +
	"[provider=NAME] [account=ID] [min=AMOUNT] [max=AMOUNT] [q=TEXT]"

// parseHistoryArgs reads key=value filters. Bare words become the search text.
func parseHistoryArgs(args []string) (finance.TransactionFilter, error) {
	filter := finance.TransactionFilter{Limit: defaultHistoryLimit, Page: 1}
	var search []string

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			search = append(search, arg)
			continue
		}
		key = strings.ToLower(key)
		if value == "" {
			return filter, &flows.ValidationError{Field: key, Message: key + " needs a value."}
		}

		var err error
		switch key {
		case "limit":
			filter.Limit, err = positiveInt(key, value)
			if err == nil && filter.Limit > maxHistoryLimit {
				err = &flows.ValidationError{Field: key, Message: fmt.Sprintf("limit must be at most %d.", maxHistoryLimit)}
			}
		case "page":
			filter.Page, err = positiveInt(key, value)
		case "days":
			filter.Days, err = positiveInt(key, value)
		case "type":
			filter.Type = strings.ToLower(value)
		case "provider":
			filter.Provider = strings.ToUpper(value)
		case "account":
			filter.AccountID = value
		case "min":
			filter.MinAmount, err = amountFilter(key, value)
		case "max":
			filter.MaxAmount, err = amountFilter(key, value)
		case "q":
			search = append(search, value)
		default:
			err = &flows.ValidationError{Field: key, Message: key + " is not a known filter."}
		}
		if err != nil {
			return filter, err
		}
	}

	if filter.MinAmount > 0 && filter.MaxAmount > 0 && filter.MinAmount > filter.MaxAmount {
		return filter, &flows.ValidationError{Field: "min", Message: "min must not exceed max."}
	}
	filter.Search = strings.Join(search, " ")
	return filter, nil
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, &flows.ValidationError{Field: key, Message: key + " must be a positive number."}
	}
	return n, nil
}

func amountFilter(key, value string) (int64, error) {
	amount, err := flows.ParseAmount(value, 0)
	if err != nil {
		return 0, &flows.ValidationError{Field: key, Message: key + " must be an amount in Rupiah."}
	}
	return amount, nil
}

func (h *Handler) handleHistory(ctx context.Context, ev Event, args []string) (flows.Reply, error) {
	filter, err := parseHistoryArgs(args)
	if err != nil {
		return flows.Reply{Text: err.Error() + "\n" + historyUsage}, nil
	}

	page, err := h.finance.ListTransactions(finance.WithPrincipal(ctx, ev.ChatID), filter)
	if err != nil {
		return flows.Reply{}, err
	}
	return flows.Reply{Text: formatHistory(page)}, nil
}

func formatHistory(page *finance.TransactionPage) string {
	if len(page.Transactions) == 0 {
		return "No transactions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Transactions (page %d of %d, %d total):", page.Page, page.TotalPages, page.Total)
	for _, tx := range page.Transactions {
		fmt.Fprintf(&b, "\n%s %s %s %s",
			tx.CreatedAt.Format("02 Jan 15:04"), strings.ToUpper(tx.Type), flows.Rupiah(tx.Amount), tx.Status)
		if tx.Description != "" {
			fmt.Fprintf(&b, " - %s", tx.Description)
		}
	}
	if page.Page < page.TotalPages {
		fmt.Fprintf(&b, "\nSend /history page=%d for more.", page.Page+1)
	}
	return b.String()
}
