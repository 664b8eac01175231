package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

// Transfer states. The account picker runs in the initial empty state.
const (
	StateSelectTransferType           = "select_transfer_type"
	StateAwaitingBankAmount           = "awaiting_bank_amount"
	StateSelectingBankMethod          = "selecting_bank_method"
	StateSearchingBank                = "searching_bank"
	StateAwaitingAccountNumber        = "awaiting_account_number"
	StateAwaitingTransferConfirmation = "awaiting_transfer_confirmation"
	StateAwaitingQRISAmount           = "awaiting_qris_amount"
	StateAwaitingQRISPhoto            = "awaiting_qris_photo"
)

const (
	actionTransferType = "transfer_type"
	actionBankMethod   = "bank_method"
	actionBank         = "bank"
	actionBankPage     = "bank_page"

	pagePrev = "prev"
	pageNext = "next"

	transferBank = "bank"
	transferQRIS = "qris"

	methodSearch  = "search"
	methodPopular = "popular"
	methodBrowse  = "browse"
)

var (
	transferTypeAliases = map[string]string{
		"bank": transferBank, "transfer": transferBank,
		"qris": transferQRIS, "qr": transferQRIS,
	}
	bankMethodAliases = map[string]string{
		"search": methodSearch, "popular": methodPopular,
		"browse": methodBrowse, "all": methodBrowse,
	}
)

// MediaFetcher downloads an inbound attachment.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, ref string) ([]byte, error)
}

// TransferData is the transfer session payload.
type TransferData struct {
	AccountID     string         `json:"account_id,omitempty"`
	AccountLabel  string         `json:"account_label,omitempty"`
	Type          string         `json:"transfer_type,omitempty"`
	Amount        int64          `json:"amount,omitempty"`
	Banks         []finance.Bank `json:"banks,omitempty"`
	BankPage      int            `json:"bank_page,omitempty"`
	BankCode      string         `json:"bank_code,omitempty"`
	BankName      string         `json:"bank_name,omitempty"`
	AccountNumber string         `json:"account_number,omitempty"`
	TransferToken string         `json:"transfer_token,omitempty"`
	RecipientName string         `json:"recipient_name,omitempty"`
	Fee           int64          `json:"fee,omitempty"`
}

// Transfer sends money from a linked wallet to a bank account or pays a
// QRIS merchant code.
type Transfer struct {
	machine
	finance finance.Client
	media   MediaFetcher
}

// NewTransfer creates the transfer flow.
func NewTransfer(client finance.Client, media MediaFetcher) *Transfer {
	f := &Transfer{finance: client, media: media}
	f.machine = machine{
		kind:  session.KindTransfer,
		start: f.start,
		steps: map[string]stepFunc{
			"":                                f.pickAccount,
			StateSelectTransferType:           f.selectType,
			StateAwaitingBankAmount:           f.bankAmount,
			StateSelectingBankMethod:          f.bankMethod,
			StateSearchingBank:                f.searchBank,
			StateAwaitingAccountNumber:        f.accountNumber,
			StateAwaitingTransferConfirmation: f.confirm,
			StateAwaitingQRISAmount:           f.qrisAmount,
			StateAwaitingQRISPhoto:            f.qrisPhoto,
		},
	}
	return f
}

func (f *Transfer) start(ctx context.Context, sc *StepContext) (Outcome, error) {
	accounts, err := f.finance.ListAccounts(ctx)
	if err != nil {
		return fail("list accounts", err), nil
	}
	switch len(accounts) {
	case 0:
		return complete("You have no linked wallets yet. Use /addwallet first."), nil
	case 1:
		return f.accountChosen(sc, accounts[0].ID, accounts[0].Label()), nil
	}
	return Outcome{Kind: Reprompt, Reply: Reply{
		Text:     "Which wallet do you want to pay from?",
		Keyboard: accountKeyboard(sc, accounts),
	}}, nil
}

func (f *Transfer) pickAccount(_ context.Context, sc *StepContext, in Input) (Outcome, error) {
	if in.Selection == nil || in.Selection.Action != actionAccount {
		return reprompt("Choose a wallet using the buttons above."), nil
	}
	return f.accountChosen(sc, in.Selection.Value, in.Selection.Label), nil
}

func (f *Transfer) accountChosen(sc *StepContext, id, label string) Outcome {
	return advanceTo(StateSelectTransferType,
		session.MustEncode(TransferData{AccountID: id, AccountLabel: label}),
		Reply{
			Text: fmt.Sprintf("Paying from %s. What kind of payment?", label),
			Keyboard: [][]Button{{
				sc.Choice("Bank transfer", Selection{Action: actionTransferType, Value: transferBank}),
				sc.Choice("QRIS", Selection{Action: actionTransferType, Value: transferQRIS}),
			}},
		})
}

func (f *Transfer) selectType(_ context.Context, _ *StepContext, in Input) (Outcome, error) {
	kind, ok := selected(in, actionTransferType, transferTypeAliases)
	if !ok {
		return reprompt("Choose Bank transfer or QRIS."), nil
	}
	patch := session.MustEncode(TransferData{Type: kind})
	if kind == transferQRIS {
		return advanceTo(StateAwaitingQRISAmount, patch, Reply{
			Text: fmt.Sprintf("How much do you want to pay? Minimum %s.", Rupiah(MinQRISAmount)),
		}), nil
	}
	return advanceTo(StateAwaitingBankAmount, patch, Reply{
		Text: fmt.Sprintf("How much do you want to transfer? Minimum %s.", Rupiah(MinBankAmount)),
	}), nil
}

func (f *Transfer) bankAmount(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	amount, err := ParseAmount(in.Text, MinBankAmount)
	if err != nil {
		return reprompt(err.Error()), nil
	}

	var data TransferData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}
	banks, err := f.finance.ListBanks(ctx, data.AccountID)
	if err != nil {
		return fail("list banks", err), nil
	}
	if len(banks) == 0 {
		return complete("No destination banks are available for this wallet right now."), nil
	}

	return advanceTo(StateSelectingBankMethod,
		session.MustEncode(TransferData{Amount: amount, Banks: banks}),
		Reply{
			Text: fmt.Sprintf("Transfer %s. How do you want to find the bank?", Rupiah(amount)),
			Keyboard: [][]Button{
				{sc.Choice("Search", Selection{Action: actionBankMethod, Value: methodSearch})},
				{sc.Choice("Popular banks", Selection{Action: actionBankMethod, Value: methodPopular})},
				{sc.Choice("All banks", Selection{Action: actionBankMethod, Value: methodBrowse})},
			},
		}), nil
}

func (f *Transfer) bankMethod(_ context.Context, sc *StepContext, in Input) (Outcome, error) {
	var data TransferData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}

	if in.Selection != nil {
		switch in.Selection.Action {
		case actionBank:
			return f.bankChosen(data, in.Selection.Value), nil
		case actionBankPage:
			page := data.BankPage
			switch in.Selection.Value {
			case pagePrev:
				page--
			case pageNext:
				page++
			default:
				return reprompt("Choose a bank from the list."), nil
			}
			return f.browse(sc, data, page), nil
		}
	}

	method, ok := selected(in, actionBankMethod, bankMethodAliases)
	if !ok {
		return reprompt("Choose Search, Popular banks or All banks."), nil
	}
	switch method {
	case methodSearch:
		return advanceTo(StateSearchingBank, nil, Reply{
			Text: "Type the bank name or code, e.g. BCA or 014.",
		}), nil
	case methodPopular:
		popular := PopularBanks(data.Banks)
		if len(popular) == 0 {
			return f.browse(sc, data, 1), nil
		}
		return Outcome{Kind: Reprompt, Reply: Reply{
			Text:     "Popular banks:",
			Keyboard: bankKeyboard(sc, popular),
		}}, nil
	default:
		return f.browse(sc, data, 1), nil
	}
}

func (f *Transfer) browse(sc *StepContext, data TransferData, page int) Outcome {
	banks, page, total := BankPage(data.Banks, page)
	keyboard := bankKeyboard(sc, banks)
	if nav := pageNavigation(sc, page, total); len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	return Outcome{
		Kind:  Reprompt,
		Patch: session.MustEncode(TransferData{BankPage: page}),
		Reply: Reply{
			Text:     fmt.Sprintf("All banks, page %d of %d:", page, total),
			Keyboard: keyboard,
		},
	}
}

func (f *Transfer) searchBank(_ context.Context, sc *StepContext, in Input) (Outcome, error) {
	var data TransferData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}
	if in.Selection != nil && in.Selection.Action == actionBank {
		return f.bankChosen(data, in.Selection.Value), nil
	}

	matches, err := SearchBanks(data.Banks, in.Text)
	if err != nil {
		return reprompt(err.Error()), nil
	}

	switch {
	case len(matches) == 0:
		out := reprompt(fmt.Sprintf("No bank matches %q. Try another name or code.", strings.TrimSpace(in.Text)))
		if popular := PopularBanks(data.Banks); len(popular) > 0 {
			out.Reply.Text += " Or pick one of these:"
			out.Reply.Keyboard = bankKeyboard(sc, popular)
		}
		return out, nil
	case len(matches) == 1:
		return f.bankChosen(data, matches[0].Code), nil
	}

	text := fmt.Sprintf("Found %d banks. Pick one:", len(matches))
	if len(matches) > MaxSearchResults {
		text = fmt.Sprintf("Found %d banks, showing the first %d. Type a more specific name to narrow it down.",
			len(matches), MaxSearchResults)
		matches = matches[:MaxSearchResults]
	}
	return Outcome{Kind: Reprompt, Reply: Reply{Text: text, Keyboard: bankKeyboard(sc, matches)}}, nil
}

func (f *Transfer) bankChosen(data TransferData, code string) Outcome {
	bank, ok := findBank(data.Banks, code)
	if !ok {
		return reprompt("That bank is not available. Choose another one.")
	}
	return advanceTo(StateAwaitingAccountNumber,
		session.MustEncode(TransferData{BankCode: bank.Code, BankName: bank.Name}),
		Reply{Text: fmt.Sprintf("Send the destination account number at %s.", bank.Name)},
	)
}

func (f *Transfer) accountNumber(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	number, err := ValidateAccountNumber(in.Text)
	if err != nil {
		return reprompt(err.Error()), nil
	}

	var data TransferData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}
	init, err := f.finance.InitBankTransfer(ctx, finance.TransferRequest{
		AccountID:     data.AccountID,
		BankCode:      data.BankCode,
		AccountNumber: number,
		Amount:        data.Amount,
	})
	if err != nil {
		return fail("verify destination account", err), nil
	}

	summary := fmt.Sprintf(
		"Please check the transfer:\nFrom: %s\nTo: %s, %s %s\nAmount: %s\nFee: %s\n\nReply %s to send or %s to cancel.",
		data.AccountLabel, init.RecipientName, data.BankName, number,
		Rupiah(data.Amount), Rupiah(init.Fee), TokenConfirm, TokenAbort,
	)
	return advanceTo(StateAwaitingTransferConfirmation,
		session.MustEncode(TransferData{
			AccountNumber: number,
			TransferToken: init.Token,
			RecipientName: init.RecipientName,
			Fee:           init.Fee,
		}),
		Reply{Text: summary, Keyboard: confirmKeyboard(sc)},
	), nil
}

func (f *Transfer) confirm(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	token, ok := confirmation(in)
	if !ok {
		return reprompt(fmt.Sprintf("Reply %s to send the transfer or %s to cancel.", TokenConfirm, TokenAbort)), nil
	}
	if token == TokenAbort {
		return complete("Transfer cancelled. No money was sent."), nil
	}

	var data TransferData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}
	tx, err := f.finance.CompleteBankTransfer(ctx, data.TransferToken, data.Amount)
	if err != nil {
		return fail("complete transfer", err), nil
	}
	return complete(fmt.Sprintf("Sent %s to %s (%s). Reference: %s",
		Rupiah(tx.Amount), data.RecipientName, data.BankName, tx.ID)), nil
}

func (f *Transfer) qrisAmount(_ context.Context, _ *StepContext, in Input) (Outcome, error) {
	amount, err := ParseAmount(in.Text, MinQRISAmount)
	if err != nil {
		return reprompt(err.Error()), nil
	}
	return advanceTo(StateAwaitingQRISPhoto,
		session.MustEncode(TransferData{Amount: amount}),
		Reply{Text: fmt.Sprintf("Send a photo of the QRIS code to pay %s.", Rupiah(amount))},
	), nil
}

func (f *Transfer) qrisPhoto(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	if in.Media == nil {
		return reprompt("Send the QRIS code as a photo."), nil
	}

	var data TransferData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}
	image, err := f.media.FetchMedia(ctx, in.Media.Ref)
	if err != nil {
		return fail("download QRIS photo", err), nil
	}
	tx, err := f.finance.PayQRIS(ctx, finance.QRISPayment{
		AccountID: data.AccountID,
		Amount:    data.Amount,
		Image:     image,
	})
	if err != nil {
		return fail("QRIS payment", err), nil
	}
	return complete(fmt.Sprintf("Paid %s by QRIS. Reference: %s", Rupiah(tx.Amount), tx.ID)), nil
}
