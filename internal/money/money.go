package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is the canonical price representation: integer minor units.
type Cents = int64

var ErrNegative = errors.New("amount must not be negative")

var hundred = decimal.NewFromInt(100)

// ParseDecimal converts a decimal major-unit amount ("24.90", "17.5") to cents.
// Fractions below one cent are rounded half away from zero.
func ParseDecimal(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return fromDecimal(d)
}

// FromJSON accepts a JSON number or a JSON string holding a decimal amount.
func FromJSON(raw json.RawMessage) (Cents, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseDecimal(s)
	}
	return ParseDecimal(string(raw))
}

func fromDecimal(d decimal.Decimal) (Cents, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// Decimal returns the major-unit value of c, e.g. 2490 -> 24.90.
func Decimal(c Cents) decimal.Decimal {
	return decimal.New(c, -2)
}

// String renders c with two fraction digits and a dot separator.
func String(c Cents) string {
	return Decimal(c).StringFixed(2)
}

// FormatEUR renders c the way the shop displays prices: "24,90 €".
func FormatEUR(c Cents) string {
	return strings.Replace(String(c), ".", ",", 1) + " €"
}
