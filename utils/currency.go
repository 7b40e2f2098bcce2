package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrencyDZD renders an amount as "12 500,50 DZD".
func FormatCurrencyDZD(amount decimal.Decimal) string {
	formatted := amount.StringFixed(2)

	negative := strings.HasPrefix(formatted, "-")
	formatted = strings.TrimPrefix(formatted, "-")

	parts := strings.SplitN(formatted, ".", 2)
	integerPart := parts[0]

	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	out := strings.Join(groups, " ") + "," + parts[1] + " DZD"
	if negative {
		out = "-" + out
	}
	return out
}

// GatewayAmount renders an amount the way the payment gateway expects it:
// a plain decimal string without trailing zeros ("90", "90.5").
func GatewayAmount(amount decimal.Decimal) string {
	return amount.String()
}
