package gst

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RatePlaces is the number of decimal places a stored rate keeps.
const RatePlaces = 4

var (
	// ErrInvalidRate is returned for tax rates outside [0, 100].
	ErrInvalidRate = errors.New("tax rate must be between 0 and 100")
	// ErrRatePrecision is returned for rates with more than RatePlaces decimal places.
	ErrRatePrecision = errors.New("tax rate has too many decimal places")
)

var (
	zero    = decimal.Zero
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// ValidateRate rejects rates outside [0, 100] and rates finer than RatePlaces,
// which storage could not keep exactly. Calculators assume validated input.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return fmt.Errorf("%s: %w", rate.String(), ErrInvalidRate)
	}
	if !rate.Round(RatePlaces).Equal(rate) {
		return fmt.Errorf("%s: %w", rate.String(), ErrRatePrecision)
	}
	return nil
}

// Split is a GST rate decomposed into its components, in percent.
type Split struct {
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
	CESS       decimal.Decimal `json:"cess"`
	InterState bool            `json:"isInterState"`
}

// SplitRate decomposes rate for the given supplier and buyer. Intra-state supplies
// split evenly into CGST and SGST; inter-state supplies carry the full rate as IGST.
// CESS is not part of the split and is left at zero.
func SplitRate(rate decimal.Decimal, supplier, buyer StateCode) Split {
	return Jurisdiction{Supplier: supplier, Buyer: buyer}.Split(rate)
}

// Split decomposes rate for this jurisdiction.
func (j Jurisdiction) Split(rate decimal.Decimal) Split {
	if j.InterState() {
		return Split{CGST: zero, SGST: zero, IGST: rate, CESS: zero, InterState: true}
	}
	half := rate.Div(two)
	return Split{CGST: half, SGST: half, IGST: zero, CESS: zero}
}

// WithCess returns a copy of the split carrying the additive CESS rate.
func (s Split) WithCess(cess decimal.Decimal) Split {
	s.CESS = cess
	return s
}

// GST returns CGST+SGST+IGST, excluding CESS.
func (s Split) GST() decimal.Decimal {
	return s.CGST.Add(s.SGST).Add(s.IGST)
}

// Effective returns the full rate charged on the base, CESS included.
func (s Split) Effective() decimal.Decimal {
	return s.GST().Add(s.CESS)
}
