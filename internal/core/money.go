// Package core provides money parsing and handling utilities.
//
// Amounts are carried as decimal.Decimal in the domain and persisted as integer cents.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to an amount rounded half-up to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is a valid
// amount (a line item may be unfunded); negative values are rejected.
//
// Examples:
//   ParseAmount("12.34")  -> 12.34
//   ParseAmount("12,345") -> 12.35
//   ParseAmount("-1")     -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "amount is required", Err: ErrInvalidAmount}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "amount must be a plain non-negative number", Err: ErrInvalidAmount}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a number: " + s, Err: ErrInvalidAmount}
	}
	return RoundCents(d), nil
}

// RoundCents rounds to 2 decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Cents converts an amount to integer cents for storage.
func Cents(d decimal.Decimal) int64 {
	return RoundCents(d).Shift(2).IntPart()
}

// FromCents converts stored cents back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatAmount renders an amount in the given ISO currency, e.g. "$1,234.56".
func FormatAmount(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = money.USD
	}
	return money.New(Cents(d), currency).Display()
}
