package offer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOffer is returned by Validate for offers that cannot be saved.
var ErrInvalidOffer = errors.New("invalid offer")

// Validate checks an offer before it is stored.
func (o Offer) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return invalid("name is required")
	}
	if _, err := StrategyFor(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOffer, err)
	}
	if o.Value.IsNegative() {
		return invalid("value must not be negative")
	}
	if o.MinPurchaseAmount.IsNegative() {
		return invalid("minPurchaseAmount must not be negative")
	}
	if o.MaxDiscountAmount != nil && o.MaxDiscountAmount.IsNegative() {
		return invalid("maxDiscountAmount must not be negative")
	}
	if o.isPercent() && o.Value.GreaterThan(hundred) {
		return invalid("percentage value must not exceed 100")
	}

	switch o.Kind {
	case KindBuyXGetY:
		if o.BuyQuantity <= 0 || o.GetQuantity <= 0 {
			return invalid("buyQuantity and getQuantity must be positive")
		}
	case KindCategoryBased:
		if len(o.ApplicableCategories) == 0 {
			return invalid("applicableCategories is required")
		}
	case KindLoyaltyPoints:
		if o.PointsThreshold < 0 {
			return invalid("pointsThreshold must not be negative")
		}
	case KindTimeBased:
		if o.DiscountType != "" && o.DiscountType != KindPercentage && o.DiscountType != KindFlatAmount {
			return invalid("discountType must be percentage or flat_amount")
		}
	}

	if o.ValidFrom != nil && o.ValidTo != nil && o.ValidFrom.After(*o.ValidTo) {
		return invalid("validFrom must not be after validTo")
	}
	if o.TimeStart != nil && o.TimeEnd != nil && *o.TimeStart > *o.TimeEnd {
		return invalid("time window must not cross midnight; split it into two offers")
	}
	if o.UsageLimit != nil && *o.UsageLimit == 0 {
		return invalid("usageLimit must be positive or omitted")
	}
	if o.PerCustomerLimit != nil && *o.PerCustomerLimit == 0 {
		return invalid("perCustomerLimit must be positive or omitted")
	}
	return nil
}

func (o Offer) isPercent() bool {
	switch o.Kind {
	case KindPercentage, KindCategoryBased:
		return true
	case KindTimeBased:
		return o.DiscountType != KindFlatAmount
	}
	return false
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOffer, msg)
}
