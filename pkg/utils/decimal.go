package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses an exchange-formatted amount, rejecting empty strings.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty decimal value")
	}
	return decimal.NewFromString(s)
}

// DecimalToString formats an amount for the exchange API without trailing zeros.
func DecimalToString(val decimal.Decimal) string {
	return val.String()
}
