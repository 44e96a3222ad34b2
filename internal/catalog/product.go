package catalog

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/gst"
)

// Product is the billing view of a catalog item.
type Product struct {
	ID         uuid.UUID        `json:"id"`
	SKU        string           `json:"sku"`
	Name       string           `json:"name"`
	CategoryID uuid.UUID        `json:"categoryId"`
	Price      decimal.Decimal  `json:"price"`
	MRP        *decimal.Decimal `json:"mrp,omitempty"`
	Tax        gst.Profile      `json:"tax"`
	Active     bool             `json:"active"`
}

// Validate checks pricing and tax configuration before a product is saved.
func (p Product) Validate() error {
	if p.Price.IsNegative() {
		return common.Invalid("price must not be negative", nil, map[string]string{"price": "must not be negative"})
	}
	if p.MRP != nil && p.Price.GreaterThan(*p.MRP) {
		return common.Invalid("price must not exceed MRP", nil, map[string]string{"price": "must not exceed mrp"})
	}
	if err := p.Tax.Validate(); err != nil {
		return common.Invalid("invalid tax configuration", fmt.Errorf("%w: %w", common.ErrInvalidInput, err), map[string]string{"tax": err.Error()})
	}
	return nil
}

// TaxUpdate is the admin payload replacing a product's tax configuration.
type TaxUpdate struct {
	HSNCode   string           `json:"hsnCode" validate:"omitempty,max=8,numeric"`
	GSTRate   *decimal.Decimal `json:"gstRate"`
	CGSTRate  decimal.Decimal  `json:"cgstRate"`
	SGSTRate  decimal.Decimal  `json:"sgstRate"`
	IGSTRate  decimal.Decimal  `json:"igstRate"`
	CESSRate  decimal.Decimal  `json:"cessRate"`
	Method    string           `json:"taxCalculationMethod" validate:"omitempty,oneof=inclusive exclusive"`
	Selection string           `json:"taxSelectionMode" validate:"omitempty,oneof=auto manual"`
}

// Profile converts the payload into a tax profile with defaults applied.
func (u TaxUpdate) Profile() (gst.Profile, error) {
	mode, err := gst.ParseMode(u.Method)
	if err != nil {
		return gst.Profile{}, err
	}
	selection, err := gst.ParseSelection(u.Selection)
	if err != nil {
		return gst.Profile{}, err
	}
	return gst.Profile{
		HSNCode:   u.HSNCode,
		GSTRate:   u.GSTRate,
		CGSTRate:  u.CGSTRate,
		SGSTRate:  u.SGSTRate,
		IGSTRate:  u.IGSTRate,
		CESSRate:  u.CESSRate,
		Method:    mode,
		Selection: selection,
	}, nil
}
