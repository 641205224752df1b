// Package core provides the finance domain types and the lenient parsing
// rules used when reading them from the backend.
//
// Amounts are decimals (never float64) so that sums over many transactions
// stay exact. Anything that cannot be parsed as a number is read as zero,
// which keeps aggregation total: a malformed record contributes nothing
// instead of failing a whole dashboard.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a decimal money value with a forgiving JSON decoder.
type Amount struct {
	decimal.Decimal
}

// Date is a calendar timestamp that accepts RFC 3339 or YYYY-MM-DD on input.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseAmount converts a decimal string into a decimal value.
//
// Both "12.34" and "12,34" are accepted. When a string contains both
// separators the last one is the decimal point and the other groups
// thousands, so "1,234.50" and "1.234,50" are the same amount.
// Surrounding whitespace is ignored. Empty and non-numeric input is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case comma < 0:
	case dot > comma:
		s = strings.ReplaceAll(s, ",", "")
	case dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// AmountOrZero parses s and falls back to zero on any error.
func AmountOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountFromFloat builds an Amount from a float64, mostly for tests and
// fixtures.
func AmountFromFloat(f float64) Amount {
	return Amount{Decimal: decimal.NewFromFloat(f)}
}

// MustAmount parses s and panics on failure.
func MustAmount(s string) Amount {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return Amount{Decimal: d}
}

// Float returns the amount as a float64 for ratios and display.
func (a Amount) Float() float64 {
	return a.Decimal.InexactFloat64()
}

// MarshalJSON writes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers, quoted numbers and null. Anything else
// decodes to zero rather than failing the enclosing document.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	s = strings.Trim(s, `"`)
	a.Decimal = AmountOrZero(s)
	return nil
}

// NewDate creates a UTC date at midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the date formats the backend is known to emit.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MarshalJSON writes RFC 3339, or null for the zero date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Time.Format(time.RFC3339Nano) + `"`), nil
}

// UnmarshalJSON accepts any of the known layouts. Unparseable values decode
// to the zero date.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		if errors.Is(err, ErrInvalidDate) {
			d.Time = time.Time{}
			return nil
		}
		return err
	}
	*d = parsed
	return nil
}

// ISO returns the date formatted as YYYY-MM-DD.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format("2006-01-02")
}
