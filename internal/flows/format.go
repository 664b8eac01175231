package flows

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idr = message.NewPrinter(language.Indonesian)

// Rupiah formats a whole-Rupiah amount with Indonesian grouping, e.g.
// Rp50.000.
func Rupiah(amount int64) string {
	return idr.Sprintf("Rp%d", amount)
}
