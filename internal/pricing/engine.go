package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/gst"
	"github.com/musharafmush/pos-sub010/internal/offer"
)

// Settings carries the business context a quote is computed under. It is passed
// explicitly so computations never read ambient configuration.
type Settings struct {
	Supplier gst.StateCode
	Resolver *gst.Resolver
	Location *time.Location
	Currency string
}

// Item describes a line item used for pricing calculation.
type Item struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Name       string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	Tax        gst.Profile
}

// Input is everything a quote depends on besides Settings.
type Input struct {
	Items         []Item
	Buyer         gst.StateCode
	Offers        []offer.Offer
	CustomerUsage map[uuid.UUID]int
	Loyalty       *offer.Loyalty
	Now           time.Time
}

// LineQuote is the tax computation for a single item.
type LineQuote struct {
	ProductID  uuid.UUID       `json:"productId"`
	Name       string          `json:"name,omitempty"`
	HSNCode    string          `json:"hsnCode,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Amount     decimal.Decimal `json:"amount"`
	Rate       decimal.Decimal `json:"gstRate"`
	CessRate   decimal.Decimal `json:"cessRate"`
	Method     gst.Mode        `json:"taxCalculationMethod"`
	BaseAmount decimal.Decimal `json:"baseAmount"`
	TaxAmount  decimal.Decimal `json:"taxAmount"`
	Total      decimal.Decimal `json:"total"`
	Tax        gst.Breakdown   `json:"tax"`
}

// Quote aggregates computed pricing components.
type Quote struct {
	Currency     string            `json:"currency"`
	Jurisdiction gst.Jurisdiction  `json:"jurisdiction"`
	Lines        []LineQuote       `json:"lines"`
	CartTotal    decimal.Decimal   `json:"cartTotal"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	Tax          gst.Breakdown     `json:"tax"`
	Offers       offer.StackResult `json:"offers"`
	Rejected     []offer.Rejection `json:"rejectedOffers,omitempty"`
	Discount     decimal.Decimal   `json:"discount"`
	GrandTotal   decimal.Decimal   `json:"grandTotal"`
}

// Compute prices a cart. Each line is taxed on its own amount; offers are evaluated
// against the pre-tax cart total (quantity times unit price) and the stacked discount
// is taken off the taxed total without recomputing tax.
func Compute(s Settings, in Input) Quote {
	j := gst.Jurisdiction{Supplier: s.Supplier, Buyer: in.Buyer}
	q := Quote{
		Currency:     s.Currency,
		Jurisdiction: j,
		Lines:        make([]LineQuote, 0, len(in.Items)),
	}

	taxedTotal := decimal.Zero
	lines := make([]offer.Line, 0, len(in.Items))
	for _, it := range in.Items {
		amount := it.Quantity.Mul(it.UnitPrice)
		split := it.Tax.Split(s.Resolver, j)
		lineTax, breakdown := gst.ComputeBreakdown(amount, split, it.Tax.Mode())

		q.Lines = append(q.Lines, LineQuote{
			ProductID:  it.ProductID,
			Name:       it.Name,
			HSNCode:    it.Tax.HSNCode,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Amount:     amount,
			Rate:       split.GST(),
			CessRate:   split.CESS,
			Method:     it.Tax.Mode(),
			BaseAmount: lineTax.Base,
			TaxAmount:  lineTax.Tax,
			Total:      lineTax.Total,
			Tax:        breakdown,
		})
		q.CartTotal = q.CartTotal.Add(amount)
		q.Subtotal = q.Subtotal.Add(lineTax.Base)
		q.Tax = q.Tax.Add(breakdown)
		taxedTotal = taxedTotal.Add(lineTax.Total)

		lines = append(lines, offer.Line{
			ProductID:  it.ProductID,
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		})
	}
	q.Tax.InterState = j.InterState()

	now := in.Now
	if s.Location != nil {
		now = now.In(s.Location)
	}
	usable, rejected := offer.FilterUsable(in.Offers, in.CustomerUsage)
	applicable, notApplicable := offer.EvaluateAll(usable, lines, q.CartTotal, in.Loyalty, now)
	q.Rejected = append(rejected, notApplicable...)
	q.Offers = offer.Stack(applicable, q.CartTotal)
	q.Discount = q.Offers.TotalDiscount
	q.GrandTotal = taxedTotal.Sub(q.Discount)
	return q
}

// Rounded returns the quote with every amount rounded to money precision. Rates and
// quantities are left untouched.
func (q Quote) Rounded() Quote {
	out := q
	out.Lines = make([]LineQuote, len(q.Lines))
	for i, l := range q.Lines {
		l.Amount = gst.RoundMoney(l.Amount)
		l.BaseAmount = gst.RoundMoney(l.BaseAmount)
		l.TaxAmount = gst.RoundMoney(l.TaxAmount)
		l.Total = gst.RoundMoney(l.Total)
		l.Tax = l.Tax.Rounded()
		out.Lines[i] = l
	}
	out.CartTotal = gst.RoundMoney(q.CartTotal)
	out.Subtotal = gst.RoundMoney(q.Subtotal)
	out.Tax = q.Tax.Rounded()
	out.Discount = gst.RoundMoney(q.Discount)
	out.GrandTotal = gst.RoundMoney(q.GrandTotal)
	out.Offers.Selected = roundApplicable(q.Offers.Selected)
	out.Offers.Skipped = roundApplicable(q.Offers.Skipped)
	out.Offers.TotalDiscount = gst.RoundMoney(q.Offers.TotalDiscount)
	return out
}

func roundApplicable(list []offer.Applicable) []offer.Applicable {
	if list == nil {
		return nil
	}
	out := make([]offer.Applicable, len(list))
	for i, a := range list {
		a.Discount = gst.RoundMoney(a.Discount)
		out[i] = a
	}
	return out
}
