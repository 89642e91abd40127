package common

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
)

// DefaultCurrency is used when an amount carries no currency code.
const DefaultCurrency = "USD"

func currencyCode(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" || money.GetCurrency(c) == nil {
		return DefaultCurrency
	}
	return c
}

// FormatMoney formats v in the given currency, e.g. "$1,234.56".
func FormatMoney(v float64, currency string) string {
	return money.NewFromFloat(v, currencyCode(currency)).Display()
}

// FormatSignedMoney prefixes non-negative amounts with "+".
func FormatSignedMoney(v float64, currency string) string {
	if v >= 0 {
		return "+" + FormatMoney(v, currency)
	}
	return FormatMoney(v, currency)
}

// FormatPct formats a percentage value with two decimals.
func FormatPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatSignedPct formats a percentage with a +/- prefix.
func FormatSignedPct(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}
