package offer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownKind is returned when an offer names a kind with no strategy.
var ErrUnknownKind = errors.New("unknown offer kind")

var hundred = decimal.NewFromInt(100)

// Cart is the evaluator's view of a transaction.
type Cart struct {
	Lines   []Line
	Total   decimal.Decimal
	Loyalty *Loyalty
}

// Strategy computes the discount an offer contributes to a cart. The set of
// strategies is closed: only the variants in this file implement it.
type Strategy interface {
	Discount(c Cart) decimal.Decimal
	isStrategy()
}

// Percentage takes a percent of the cart total, optionally capped.
type Percentage struct {
	Percent decimal.Decimal
	Cap     *decimal.Decimal
}

// FlatAmount is a fixed discount. It is never checked against the cart total.
type FlatAmount struct {
	Amount decimal.Decimal
}

// BuyXGetY gives Get free units for every Buy units on each matching line.
// Lines are evaluated independently; quantities are not pooled across lines.
type BuyXGetY struct {
	Buy      int
	Get      int
	Products []uuid.UUID
}

// CategoryBased takes a percent of the subtotal of lines in the listed categories.
type CategoryBased struct {
	Percent    decimal.Decimal
	Cap        *decimal.Decimal
	Categories []uuid.UUID
}

// LoyaltyPoints is a fixed discount for customers holding at least Threshold points,
// optionally restricted to some tiers.
type LoyaltyPoints struct {
	Amount    decimal.Decimal
	Threshold int64
	Tiers     []string
}

// TimeBased wraps a percentage or flat strategy used by time-windowed offers.
type TimeBased struct {
	Inner Strategy
}

func (Percentage) isStrategy()    {}
func (FlatAmount) isStrategy()    {}
func (BuyXGetY) isStrategy()      {}
func (CategoryBased) isStrategy() {}
func (LoyaltyPoints) isStrategy() {}
func (TimeBased) isStrategy()     {}

// Discount implements Strategy.
func (p Percentage) Discount(c Cart) decimal.Decimal {
	return capped(c.Total.Mul(p.Percent).Div(hundred), p.Cap)
}

// Discount implements Strategy.
func (f FlatAmount) Discount(Cart) decimal.Decimal {
	return f.Amount
}

// Discount implements Strategy.
func (b BuyXGetY) Discount(c Cart) decimal.Decimal {
	if b.Buy <= 0 || b.Get <= 0 {
		return decimal.Zero
	}
	buy := decimal.NewFromInt(int64(b.Buy))
	get := decimal.NewFromInt(int64(b.Get))
	total := decimal.Zero
	for _, line := range c.Lines {
		if len(b.Products) > 0 && !slices.Contains(b.Products, line.ProductID) {
			continue
		}
		if !line.Quantity.IsPositive() {
			continue
		}
		sets := line.Quantity.Div(buy).Floor()
		free := sets.Mul(get)
		total = total.Add(free.Mul(line.UnitPrice))
	}
	return total
}

// Discount implements Strategy.
func (cb CategoryBased) Discount(c Cart) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range c.Lines {
		if slices.Contains(cb.Categories, line.CategoryID) {
			subtotal = subtotal.Add(line.Amount())
		}
	}
	return capped(subtotal.Mul(cb.Percent).Div(hundred), cb.Cap)
}

// Discount implements Strategy.
func (l LoyaltyPoints) Discount(c Cart) decimal.Decimal {
	if c.Loyalty == nil || c.Loyalty.AvailablePoints < l.Threshold {
		return decimal.Zero
	}
	if len(l.Tiers) > 0 && !containsFold(l.Tiers, c.Loyalty.Tier) {
		return decimal.Zero
	}
	return l.Amount
}

// Discount implements Strategy.
func (t TimeBased) Discount(c Cart) decimal.Decimal {
	if t.Inner == nil {
		return decimal.Zero
	}
	return t.Inner.Discount(c)
}

// StrategyFor builds the strategy for an offer's kind.
func StrategyFor(o Offer) (Strategy, error) {
	switch o.Kind {
	case KindPercentage:
		return Percentage{Percent: o.Value, Cap: o.MaxDiscountAmount}, nil
	case KindFlatAmount:
		return FlatAmount{Amount: o.Value}, nil
	case KindBuyXGetY:
		return BuyXGetY{Buy: o.BuyQuantity, Get: o.GetQuantity, Products: o.ApplicableProducts}, nil
	case KindCategoryBased:
		return CategoryBased{Percent: o.Value, Cap: o.MaxDiscountAmount, Categories: o.ApplicableCategories}, nil
	case KindLoyaltyPoints:
		return LoyaltyPoints{Amount: o.Value, Threshold: o.PointsThreshold, Tiers: o.LoyaltyTiers}, nil
	case KindTimeBased:
		if o.DiscountType == KindFlatAmount {
			return TimeBased{Inner: FlatAmount{Amount: o.Value}}, nil
		}
		return TimeBased{Inner: Percentage{Percent: o.Value, Cap: o.MaxDiscountAmount}}, nil
	default:
		return nil, fmt.Errorf("%q: %w", o.Kind, ErrUnknownKind)
	}
}

func capped(discount decimal.Decimal, limit *decimal.Decimal) decimal.Decimal {
	if limit != nil && discount.GreaterThan(*limit) {
		return *limit
	}
	return discount
}
