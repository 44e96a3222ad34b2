package offer

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInactive is returned when the offer's active flag is off.
	ErrInactive = errors.New("offer not active")
	// ErrNotStarted is returned before the offer's validity window opens.
	ErrNotStarted = errors.New("offer not yet valid")
	// ErrExpired is returned after the offer's validity window closes.
	ErrExpired = errors.New("offer expired")
	// ErrOutsideHours is returned when the time of day falls outside the offer's hours.
	ErrOutsideHours = errors.New("offer not valid at this time of day")
	// ErrMinimumPurchaseUnmet indicates the cart total is below the offer minimum.
	ErrMinimumPurchaseUnmet = errors.New("offer minimum purchase not met")
	// ErrNoDiscount indicates the offer would discount nothing on this cart.
	ErrNoDiscount = errors.New("offer yields no discount")
)

// Applicable is an offer that applies to a cart together with its discount.
type Applicable struct {
	OfferID  uuid.UUID       `json:"offerId"`
	Code     string          `json:"code,omitempty"`
	Name     string          `json:"name"`
	Kind     Kind            `json:"kind"`
	Priority int             `json:"priority"`
	Discount decimal.Decimal `json:"discount"`
}

// Check reports why an offer cannot apply at now for the given cart total, or nil.
// now is interpreted in its own location for the time-of-day window.
func (o Offer) Check(now time.Time, cartTotal decimal.Decimal) error {
	if !o.Active {
		return ErrInactive
	}
	if o.ValidFrom != nil && now.Before(*o.ValidFrom) {
		return ErrNotStarted
	}
	if o.ValidTo != nil && now.After(*o.ValidTo) {
		return ErrExpired
	}
	if !o.withinHours(now) {
		return ErrOutsideHours
	}
	if cartTotal.LessThan(o.MinPurchaseAmount) {
		return ErrMinimumPurchaseUnmet
	}
	return nil
}

// withinHours treats a window whose start is after its end as never open.
// Overnight offers must be configured as two offers.
func (o Offer) withinHours(now time.Time) bool {
	if o.TimeStart == nil && o.TimeEnd == nil {
		return true
	}
	clock := ClockOf(now)
	start, end := ClockTime(0), Clock(23, 59)
	if o.TimeStart != nil {
		start = *o.TimeStart
	}
	if o.TimeEnd != nil {
		end = *o.TimeEnd
	}
	if start > end {
		return false
	}
	return clock >= start && clock <= end
}

// Evaluate returns the offer's discount on the cart, or false when the offer does not
// apply. Unknown kinds and discounts that round to zero are treated as not applicable.
func Evaluate(o Offer, lines []Line, cartTotal decimal.Decimal, loyalty *Loyalty, now time.Time) (Applicable, bool) {
	a, err := evaluate(o, Cart{Lines: lines, Total: cartTotal, Loyalty: loyalty}, now)
	return a, err == nil
}

func evaluate(o Offer, cart Cart, now time.Time) (Applicable, error) {
	if err := o.Check(now, cart.Total); err != nil {
		return Applicable{}, err
	}
	strategy, err := StrategyFor(o)
	if err != nil {
		return Applicable{}, err
	}
	discount := strategy.Discount(cart)
	if !discount.Round(2).IsPositive() {
		return Applicable{}, ErrNoDiscount
	}
	return Applicable{
		OfferID:  o.ID,
		Code:     o.Code,
		Name:     o.Name,
		Kind:     o.Kind,
		Priority: o.Priority,
		Discount: discount,
	}, nil
}

// Rejection records why an offer was not applicable.
type Rejection struct {
	OfferID uuid.UUID `json:"offerId"`
	Name    string    `json:"name"`
	Reason  string    `json:"reason"`
}

// EvaluateAll evaluates every offer against the same cart. Applicable offers keep the
// input order; the rest are reported as rejections.
func EvaluateAll(offers []Offer, lines []Line, cartTotal decimal.Decimal, loyalty *Loyalty, now time.Time) ([]Applicable, []Rejection) {
	cart := Cart{Lines: lines, Total: cartTotal, Loyalty: loyalty}
	applicable := make([]Applicable, 0, len(offers))
	var rejected []Rejection
	for _, o := range offers {
		a, err := evaluate(o, cart, now)
		if err != nil {
			rejected = append(rejected, Rejection{OfferID: o.ID, Name: o.Name, Reason: err.Error()})
			continue
		}
		applicable = append(applicable, a)
	}
	return applicable, rejected
}

// CartTotal sums quantity times unit price over the lines.
func CartTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return total
}

func containsFold(values []string, target string) bool {
	target = strings.TrimSpace(target)
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
