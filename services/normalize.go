package services

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// nonPriceChars matches everything that is not a digit or a literal
// decimal point.
var nonPriceChars = regexp.MustCompile(`[^\d.]`)

// NormalizePrice converts free-text price markup into a fixed-point
// amount. Currency symbols, spaces, and comma thousands separators are
// stripped, so "$1,234.56" becomes 1234.56. Anything that still fails to
// parse (including the "N/A" sentinel and the empty string) yields
// decimal.Zero rather than an error, which makes unparseable input
// indistinguishable from a genuine zero price; callers that care must
// inspect the original text.
//
// Known limitation: locale-swapped input with dot thousands separators
// and a comma decimal mark ("1.234,56") is normalized incorrectly by this
// strip rule.
func NormalizePrice(text string) decimal.Decimal {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return amount
}
