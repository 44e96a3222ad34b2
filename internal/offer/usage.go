package offer

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUsageLimitReached indicates the offer has exhausted its global quota.
	ErrUsageLimitReached = errors.New("offer usage limit reached")
	// ErrPerCustomerLimitReached indicates the customer has used the offer too often.
	ErrPerCustomerLimitReached = errors.New("offer per-customer usage limit reached")
)

// UsageAllows reports whether the offer still has quota for a customer who has
// redeemed it customerUsed times. A negative limit means unlimited.
func UsageAllows(o Offer, customerUsed int) error {
	if o.UsageLimit != nil && *o.UsageLimit >= 0 && o.UsedCount >= *o.UsageLimit {
		return ErrUsageLimitReached
	}
	if o.PerCustomerLimit != nil && *o.PerCustomerLimit >= 0 && customerUsed >= int(*o.PerCustomerLimit) {
		return ErrPerCustomerLimitReached
	}
	return nil
}

// FilterUsable drops offers whose usage quota is exhausted. usage maps offer ID to the
// customer's redemption count and may be nil for anonymous sales.
func FilterUsable(offers []Offer, usage map[uuid.UUID]int) ([]Offer, []Rejection) {
	kept := make([]Offer, 0, len(offers))
	var rejected []Rejection
	for _, o := range offers {
		if err := UsageAllows(o, usage[o.ID]); err != nil {
			rejected = append(rejected, Rejection{OfferID: o.ID, Name: o.Name, Reason: err.Error()})
			continue
		}
		kept = append(kept, o)
	}
	return kept, rejected
}

// Redemption records that an offer was applied to a completed sale.
type Redemption struct {
	OfferID    uuid.UUID       `json:"offerId"`
	SaleID     string          `json:"saleId"`
	CustomerID *uuid.UUID      `json:"customerId,omitempty"`
	Discount   decimal.Decimal `json:"discount"`
	RedeemedAt time.Time       `json:"redeemedAt"`
}
