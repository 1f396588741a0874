// Package core holds the budgeting domain: money, the transaction ledger,
// the savings goal and the loan tracking state machine.
//
// Amounts are kept as integer minor units. Conversion to and from decimal
// text goes through shopspring/decimal so rounding is always half-up to
// two places.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (paise/cents).
type Money struct {
	Cents int64
}

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to a positive Money value.
//
// A dot (12.34) or a single comma followed by one or two digits (12,34)
// separates the decimals, and the value is rounded half-up to two places.
// Grouped input such as "1,000" or "1,20,000" is rejected rather than read
// as a fraction. Signs, zero and anything that is not a plain decimal
// number yield ErrInvalidAmount.
//
//	ParseAmount("12.345") -> 1235
//	ParseAmount("12,5")   -> 1250
//	ParseAmount("1,000")  -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// parseDecimal reads an unsigned plain decimal, allowing a comma as the
// decimal separator only when it is the sole separator and one or two
// digits follow it.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		frac := s[i+1:]
		if strings.ContainsAny(frac, ",.") || i == 0 || strings.Contains(s[:i], ".") || len(frac) < 1 || len(frac) > 2 {
			return decimal.Decimal{}, ErrInvalidAmount
		}
		s = s[:i] + "." + frac
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// MoneyFromDecimal rounds d half-up to two places.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if !cents.BigInt().IsInt64() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// MoneyFromFloat converts a float such as one decoded from a model reply.
func MoneyFromFloat(f float64) (Money, error) {
	return MoneyFromDecimal(decimal.NewFromFloat(f))
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// Times multiplies the amount by a count, e.g. EMI times installments.
func (m Money) Times(n int) Money { return Money{Cents: m.Cents * int64(n)} }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount with two decimals, e.g. "1200.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", raw, ErrInvalidAmount)
	}
	v, err := MoneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
