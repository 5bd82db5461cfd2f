// Package money formats decimal amounts for display in pages and emails.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Suffix is appended to every formatted amount.
const Suffix = " đ"

// Formatter renders amounts as whole numbers with locale grouping, e.g.
// "1.250.000 đ" for Vietnamese.
type Formatter struct {
	p *message.Printer
}

// NewFormatter returns a Formatter for the given locale.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{p: message.NewPrinter(tag)}
}

// Default formats with the Vietnamese locale.
var Default = NewFormatter(language.Vietnamese)

// Format rounds v to a whole amount (half away from zero) and groups the
// digits.
func (f *Formatter) Format(v decimal.Decimal) string {
	return f.p.Sprintf("%d", v.Round(0).IntPart()) + Suffix
}

// Format formats v with Default.
func Format(v decimal.Decimal) string {
	return Default.Format(v)
}
