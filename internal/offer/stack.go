package offer

import (
	"slices"

	"github.com/shopspring/decimal"
)

// StackResult is the subset of offers accepted for a transaction.
type StackResult struct {
	Selected      []Applicable    `json:"selected"`
	Skipped       []Applicable    `json:"skipped,omitempty"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
}

// Stack orders offers by priority ascending, then discount descending, and accepts each
// one whose discount fits in what remains of the cart total. An offer that does not fit
// when visited is skipped and never retried, so TotalDiscount never exceeds cartTotal.
// The input slice is not modified.
func Stack(applicable []Applicable, cartTotal decimal.Decimal) StackResult {
	ordered := slices.Clone(applicable)
	slices.SortStableFunc(ordered, func(a, b Applicable) int {
		if a.Priority != b.Priority {
			if a.Priority < b.Priority {
				return -1
			}
			return 1
		}
		return b.Discount.Cmp(a.Discount)
	})

	result := StackResult{Selected: make([]Applicable, 0, len(ordered)), TotalDiscount: decimal.Zero}
	remaining := cartTotal
	for _, a := range ordered {
		if a.Discount.GreaterThan(remaining) {
			result.Skipped = append(result.Skipped, a)
			continue
		}
		result.Selected = append(result.Selected, a)
		result.TotalDiscount = result.TotalDiscount.Add(a.Discount)
		remaining = remaining.Sub(a.Discount)
	}
	return result
}
