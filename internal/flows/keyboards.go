package flows

import "github.com/lewisedginton/wallet_chatbot/internal/finance"

const (
	actionAccount = "account"
	actionConfirm = "confirm"
	banksPerRow   = 2
)

func accountKeyboard(sc *StepContext, accounts []finance.Account) [][]Button {
	rows := make([][]Button, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []Button{
			sc.Choice(a.Label(), Selection{Action: actionAccount, Value: a.ID}),
		})
	}
	return rows
}

func confirmKeyboard(sc *StepContext) [][]Button {
	return [][]Button{{
		sc.Choice(TokenConfirm, Selection{Action: actionConfirm, Value: TokenConfirm}),
		sc.Choice(TokenAbort, Selection{Action: actionConfirm, Value: TokenAbort}),
	}}
}

func bankKeyboard(sc *StepContext, banks []finance.Bank) [][]Button {
	var rows [][]Button
	for i := 0; i < len(banks); i += banksPerRow {
		var row []Button
		for _, b := range banks[i:min(i+banksPerRow, len(banks))] {
			row = append(row, sc.Choice(b.Name, Selection{Action: actionBank, Value: b.Code}))
		}
		rows = append(rows, row)
	}
	return rows
}

func pageNavigation(sc *StepContext, page, total int) []Button {
	var nav []Button
	if page > 1 {
		nav = append(nav, sc.Choice("« Prev", Selection{Action: actionBankPage, Value: pagePrev}))
	}
	if page < total {
		nav = append(nav, sc.Choice("Next »", Selection{Action: actionBankPage, Value: pageNext}))
	}
	return nav
}

// confirmation reads KONFIRMASI or BATAL from a button or typed text.
func confirmation(in Input) (string, bool) {
	if in.Selection != nil {
		if in.Selection.Action != actionConfirm {
			return "", false
		}
		return in.Selection.Value, true
	}
	return ParseConfirmation(in.Text)
}
