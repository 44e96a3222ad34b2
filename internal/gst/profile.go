package gst

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidProfile is returned when a product tax configuration is inconsistent.
var ErrInvalidProfile = errors.New("invalid tax configuration")

// Selection tells whether component rates are derived (auto) or entered (manual).
type Selection string

const (
	SelectionAuto   Selection = "auto"
	SelectionManual Selection = "manual"
)

// ParseSelection parses a tax selection mode. Empty input defaults to auto.
func ParseSelection(value string) (Selection, error) {
	switch Selection(strings.ToLower(strings.TrimSpace(value))) {
	case "", SelectionAuto:
		return SelectionAuto, nil
	case SelectionManual:
		return SelectionManual, nil
	default:
		return "", fmt.Errorf("tax selection %q: %w", value, ErrInvalidProfile)
	}
}

// Profile is the tax-relevant part of a product.
type Profile struct {
	HSNCode   string           `json:"hsnCode"`
	GSTRate   *decimal.Decimal `json:"gstRate,omitempty"`
	CGSTRate  decimal.Decimal  `json:"cgstRate"`
	SGSTRate  decimal.Decimal  `json:"sgstRate"`
	IGSTRate  decimal.Decimal  `json:"igstRate"`
	CESSRate  decimal.Decimal  `json:"cessRate"`
	Method    Mode             `json:"taxCalculationMethod"`
	Selection Selection        `json:"taxSelectionMode"`
}

// Validate checks every rate is in [0, 100] and, in auto mode, that CGST+SGST
// equals IGST.
func (p Profile) Validate() error {
	type field struct {
		name string
		rate decimal.Decimal
	}
	fields := []field{
		{"cgstRate", p.CGSTRate},
		{"sgstRate", p.SGSTRate},
		{"igstRate", p.IGSTRate},
		{"cessRate", p.CESSRate},
	}
	if p.GSTRate != nil {
		fields = append(fields, field{"gstRate", *p.GSTRate})
	}
	for _, f := range fields {
		if err := ValidateRate(f.rate); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if _, err := ParseMode(string(p.Method)); err != nil {
		return err
	}
	selection, err := ParseSelection(string(p.Selection))
	if err != nil {
		return err
	}
	if selection == SelectionAuto && !p.CGSTRate.Add(p.SGSTRate).Equal(p.IGSTRate) {
		return fmt.Errorf("cgstRate + sgstRate must equal igstRate in auto mode: %w", ErrInvalidProfile)
	}
	if selection == SelectionAuto && p.GSTRate != nil && !p.IGSTRate.IsZero() && !p.GSTRate.Equal(p.IGSTRate) {
		return fmt.Errorf("igstRate must equal gstRate in auto mode: %w", ErrInvalidProfile)
	}
	return nil
}

// Rate returns the GST rate this profile charges, excluding CESS. Auto profiles use
// the stored GST rate, or the HSN lookup when none is stored. Manual profiles use the
// entered components for the jurisdiction.
func (p Profile) Rate(r *Resolver, j Jurisdiction) decimal.Decimal {
	return p.Split(r, j).GST()
}

// Split resolves the component rates for the jurisdiction, CESS included.
func (p Profile) Split(r *Resolver, j Jurisdiction) Split {
	if p.Selection == SelectionManual {
		if j.InterState() {
			return Split{IGST: p.IGSTRate, InterState: true}.WithCess(p.CESSRate)
		}
		return Split{CGST: p.CGSTRate, SGST: p.SGSTRate}.WithCess(p.CESSRate)
	}
	var rate decimal.Decimal
	if p.GSTRate != nil {
		rate = *p.GSTRate
	} else {
		rate, _ = r.LookupRate(p.HSNCode)
	}
	return j.Split(rate).WithCess(p.CESSRate)
}

// Mode returns the calculation method, defaulting to exclusive.
func (p Profile) Mode() Mode {
	if p.Method == ModeInclusive {
		return ModeInclusive
	}
	return ModeExclusive
}
