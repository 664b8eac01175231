package flows

import (
	"context"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

// StateConfirmRemoval asks the user to confirm unlinking a wallet.
const StateConfirmRemoval = "confirm_removal"

// RemoveWalletData is the remove_wallet session payload.
type RemoveWalletData struct {
	AccountID    string `json:"account_id,omitempty"`
	AccountLabel string `json:"account_label,omitempty"`
}

// RemoveWallet unlinks a wallet after confirmation.
type RemoveWallet struct {
	machine
	finance finance.Client
}

// NewRemoveWallet creates the remove_wallet flow.
func NewRemoveWallet(client finance.Client) *RemoveWallet {
	f := &RemoveWallet{finance: client}
	f.machine = machine{
		kind:  session.KindRemoveWallet,
		start: f.start,
		steps: map[string]stepFunc{
			"":                  f.pick,
			StateConfirmRemoval: f.confirm,
		},
	}
	return f
}

func (f *RemoveWallet) start(ctx context.Context, sc *StepContext) (Outcome, error) {
	accounts, err := f.finance.ListAccounts(ctx)
	if err != nil {
		return fail("list accounts", err), nil
	}
	if len(accounts) == 0 {
		return complete("You have no linked wallets."), nil
	}
	return Outcome{Kind: Reprompt, Reply: Reply{
		Text:     "Which wallet do you want to remove?",
		Keyboard: accountKeyboard(sc, accounts),
	}}, nil
}

func (f *RemoveWallet) pick(_ context.Context, sc *StepContext, in Input) (Outcome, error) {
	if in.Selection == nil || in.Selection.Action != actionAccount {
		return reprompt("Choose a wallet using the buttons above."), nil
	}
	label := in.Selection.Label
	return advanceTo(StateConfirmRemoval,
		session.MustEncode(RemoveWalletData{AccountID: in.Selection.Value, AccountLabel: label}),
		Reply{
			Text:     fmt.Sprintf("Remove %s? Reply %s to remove it or %s to keep it.", label, TokenConfirm, TokenAbort),
			Keyboard: confirmKeyboard(sc),
		},
	), nil
}

func (f *RemoveWallet) confirm(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	token, ok := confirmation(in)
	if !ok {
		return reprompt(fmt.Sprintf("Reply %s to remove the wallet or %s to keep it.", TokenConfirm, TokenAbort)), nil
	}
	if token == TokenAbort {
		return complete("Nothing was removed."), nil
	}

	var data RemoveWalletData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}
	if err := f.finance.RemoveAccount(ctx, data.AccountID); err != nil {
		return fail("remove account", err), nil
	}
	return complete(fmt.Sprintf("%s was removed.", data.AccountLabel)), nil
}
