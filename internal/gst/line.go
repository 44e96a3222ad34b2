package gst

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidMode is returned for unknown tax calculation methods.
var ErrInvalidMode = errors.New("invalid tax calculation method")

// MoneyPlaces is the number of decimal places used for display and persistence.
const MoneyPlaces = 2

// Mode tells whether a listed amount already contains tax.
type Mode string

const (
	ModeExclusive Mode = "exclusive"
	ModeInclusive Mode = "inclusive"
)

// ParseMode parses a tax calculation method. Empty input defaults to exclusive.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeExclusive:
		return ModeExclusive, nil
	case ModeInclusive:
		return ModeInclusive, nil
	default:
		return "", fmt.Errorf("%q: %w", value, ErrInvalidMode)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// LineTax is the tax computation for a single line.
type LineTax struct {
	Base  decimal.Decimal `json:"baseAmount"`
	Tax   decimal.Decimal `json:"taxAmount"`
	Total decimal.Decimal `json:"total"`
}

// ComputeLine computes base, tax and total for amount at rate percent. Inclusive
// amounts already contain the tax; exclusive amounts have it added on top. Negative
// amounts keep their sign. No rounding is applied.
func ComputeLine(amount, rate decimal.Decimal, mode Mode) LineTax {
	if mode == ModeInclusive {
		tax := amount.Mul(rate).Div(hundred.Add(rate))
		return LineTax{Base: amount.Sub(tax), Tax: tax, Total: amount}
	}
	tax := amount.Mul(rate).Div(hundred)
	return LineTax{Base: amount, Tax: tax, Total: amount.Add(tax)}
}

// Rounded returns the line rounded half away from zero to MoneyPlaces.
func (l LineTax) Rounded() LineTax {
	return LineTax{Base: RoundMoney(l.Base), Tax: RoundMoney(l.Tax), Total: RoundMoney(l.Total)}
}

// RoundMoney rounds half away from zero to MoneyPlaces. Only call it at the
// display or persistence boundary.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
