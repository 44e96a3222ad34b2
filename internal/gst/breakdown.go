package gst

import "github.com/shopspring/decimal"

// Breakdown is the tax amount per component for a line or a whole sale. It is
// derived from rate, amount and jurisdiction and never stored.
type Breakdown struct {
	CGST       decimal.Decimal `json:"cgst"`
	SGST       decimal.Decimal `json:"sgst"`
	IGST       decimal.Decimal `json:"igst"`
	CESS       decimal.Decimal `json:"cess"`
	Total      decimal.Decimal `json:"total"`
	InterState bool            `json:"isInterState"`
}

// ComputeBreakdown computes the line tax for amount under split and apportions it
// across the components. CESS is charged on the same base as GST.
func ComputeBreakdown(amount decimal.Decimal, split Split, mode Mode) (LineTax, Breakdown) {
	line := ComputeLine(amount, split.Effective(), mode)
	b := Breakdown{
		CGST:       componentOf(line.Base, split.CGST),
		SGST:       componentOf(line.Base, split.SGST),
		IGST:       componentOf(line.Base, split.IGST),
		CESS:       componentOf(line.Base, split.CESS),
		InterState: split.InterState,
	}
	b.Total = b.CGST.Add(b.SGST).Add(b.IGST).Add(b.CESS)
	return line, b
}

func componentOf(base, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return zero
	}
	return base.Mul(rate).Div(hundred)
}

// Add aggregates two breakdowns.
func (b Breakdown) Add(other Breakdown) Breakdown {
	return Breakdown{
		CGST:       b.CGST.Add(other.CGST),
		SGST:       b.SGST.Add(other.SGST),
		IGST:       b.IGST.Add(other.IGST),
		CESS:       b.CESS.Add(other.CESS),
		Total:      b.Total.Add(other.Total),
		InterState: b.InterState || other.InterState,
	}
}

// Rounded returns the breakdown with every amount rounded to MoneyPlaces. Total
// always equals the sum of the rounded components.
func (b Breakdown) Rounded() Breakdown {
	r := Breakdown{
		CGST:       RoundMoney(b.CGST),
		SGST:       RoundMoney(b.SGST),
		IGST:       RoundMoney(b.IGST),
		CESS:       RoundMoney(b.CESS),
		InterState: b.InterState,
	}
	r.Total = r.CGST.Add(r.SGST).Add(r.IGST).Add(r.CESS)
	return r
}
