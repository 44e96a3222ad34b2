package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/gst"
	"github.com/musharafmush/pos-sub010/internal/offer"
)

// QuoteItem is one scanned product on the cart.
type QuoteItem struct {
	ProductID uuid.UUID       `json:"productId" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// QuoteRequest is the cart submitted for pricing.
type QuoteRequest struct {
	Items      []QuoteItem `json:"items" validate:"required,min=1,max=500,dive"`
	BuyerState string      `json:"buyerState" validate:"omitempty,max=64"`
	CustomerID *uuid.UUID  `json:"customerId,omitempty"`
}

// LineTaxRequest asks for the tax on a single amount. Without gstRate the rate is
// resolved from hsnCode.
type LineTaxRequest struct {
	Amount        decimal.Decimal  `json:"amount"`
	Rate          *decimal.Decimal `json:"gstRate,omitempty"`
	HSNCode       string           `json:"hsnCode" validate:"omitempty,max=8,numeric"`
	CessRate      decimal.Decimal  `json:"cessRate"`
	Method        string           `json:"taxCalculationMethod" validate:"omitempty,oneof=inclusive exclusive"`
	SupplierState string           `json:"supplierState" validate:"omitempty,max=64"`
	BuyerState    string           `json:"buyerState" validate:"omitempty,max=64"`
}

// LineTaxResult is the rounded computation for a LineTaxRequest.
type LineTaxResult struct {
	Amount       decimal.Decimal  `json:"amount"`
	Rate         decimal.Decimal  `json:"gstRate"`
	HSNFound     *bool            `json:"hsnFound,omitempty"`
	Method       gst.Mode         `json:"taxCalculationMethod"`
	Jurisdiction gst.Jurisdiction `json:"jurisdiction"`
	Split        gst.Split        `json:"rates"`
	Line         gst.LineTax      `json:"line"`
	Tax          gst.Breakdown    `json:"tax"`
}

// HSNResult is the resolved rate for an HSN code.
type HSNResult struct {
	HSNCode string          `json:"hsnCode"`
	Rate    decimal.Decimal `json:"gstRate"`
	Found   bool            `json:"found"`
	Intra   gst.Split       `json:"intraStateSplit"`
}

// offerRequest is the admin payload for a new offer. Offers are active unless the
// caller says otherwise.
type offerRequest struct {
	offer.Offer
	Active *bool `json:"active"`
}

func (r offerRequest) toOffer() offer.Offer {
	o := r.Offer
	o.Active = r.Active == nil || *r.Active
	return o
}
