// Package pricing converts and formats amounts held in the base currency.
package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const BaseCurrency = "USD"

type Currency struct {
	Code   string
	Symbol string
	Rate   decimal.Decimal
}

// Static rates against USD.
var currencies = map[string]Currency{
	"USD": {Code: "USD", Symbol: "$", Rate: decimal.NewFromInt(1)},
	"EUR": {Code: "EUR", Symbol: "€", Rate: decimal.RequireFromString("0.92")},
	"GBP": {Code: "GBP", Symbol: "£", Rate: decimal.RequireFromString("0.79")},
	"INR": {Code: "INR", Symbol: "₹", Rate: decimal.RequireFromString("83.12")},
	"JPY": {Code: "JPY", Symbol: "¥", Rate: decimal.RequireFromString("149.50")},
	"CAD": {Code: "CAD", Symbol: "C$", Rate: decimal.RequireFromString("1.36")},
	"AUD": {Code: "AUD", Symbol: "A$", Rate: decimal.RequireFromString("1.52")},
	"ARS": {Code: "ARS", Symbol: "AR$", Rate: decimal.RequireFromString("350.00")},
}

// Lookup returns the currency for code, or the base currency when the code
// is unknown.
func Lookup(code string) Currency {
	if c, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return c
	}
	return currencies[BaseCurrency]
}

func Supported(code string) bool {
	_, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

func Codes() []string {
	codes := make([]string, 0, len(currencies))
	for code := range currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Convert returns amount in currency, rounded to two places.
func Convert(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Mul(Lookup(currency).Rate).Round(2)
}

// FormatPrice renders amount, given in the base currency, in currency.
func FormatPrice(amount decimal.Decimal, currency string) string {
	c := Lookup(currency)
	return c.Symbol + amount.Mul(c.Rate).StringFixed(2)
}
