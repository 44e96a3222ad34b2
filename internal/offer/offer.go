package offer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names a discount strategy.
type Kind string

const (
	KindPercentage    Kind = "percentage"
	KindFlatAmount    Kind = "flat_amount"
	KindBuyXGetY      Kind = "buy_x_get_y"
	KindCategoryBased Kind = "category_based"
	KindLoyaltyPoints Kind = "loyalty_points"
	KindTimeBased     Kind = "time_based"
)

// Offer is a configured discount rule as entered by an administrator.
type Offer struct {
	ID                   uuid.UUID        `json:"id"`
	Code                 string           `json:"code"`
	Name                 string           `json:"name"`
	Kind                 Kind             `json:"kind"`
	Value                decimal.Decimal  `json:"value"`
	DiscountType         Kind             `json:"discountType,omitempty"`
	MinPurchaseAmount    decimal.Decimal  `json:"minPurchaseAmount"`
	MaxDiscountAmount    *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	BuyQuantity          int              `json:"buyQuantity,omitempty"`
	GetQuantity          int              `json:"getQuantity,omitempty"`
	ApplicableProducts   []uuid.UUID      `json:"applicableProducts,omitempty"`
	ApplicableCategories []uuid.UUID      `json:"applicableCategories,omitempty"`
	PointsThreshold      int64            `json:"pointsThreshold,omitempty"`
	LoyaltyTiers         []string         `json:"loyaltyTiers,omitempty"`
	ValidFrom            *time.Time       `json:"validFrom,omitempty"`
	ValidTo              *time.Time       `json:"validTo,omitempty"`
	TimeStart            *ClockTime       `json:"timeStart,omitempty"`
	TimeEnd              *ClockTime       `json:"timeEnd,omitempty"`
	UsageLimit           *int32           `json:"usageLimit,omitempty"`
	UsedCount            int32            `json:"usedCount"`
	PerCustomerLimit     *int32           `json:"perCustomerLimit,omitempty"`
	Priority             int              `json:"priority"`
	Active               bool             `json:"active"`
}

// Line is a cart line as seen by the evaluator.
type Line struct {
	ProductID  uuid.UUID       `json:"productId"`
	CategoryID uuid.UUID       `json:"categoryId"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

// Amount returns quantity times unit price.
func (l Line) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Loyalty is a read-only snapshot of a customer's loyalty account.
type Loyalty struct {
	CustomerID      uuid.UUID `json:"customerId"`
	AvailablePoints int64     `json:"availablePoints"`
	TotalEarned     int64     `json:"totalEarned"`
	TotalRedeemed   int64     `json:"totalRedeemed"`
	Tier            string    `json:"tier"`
}

// ErrInvalidClock is returned for malformed HH:MM values.
var ErrInvalidClock = errors.New("time of day must be HH:MM")

// ClockTime is a time of day with minute precision, stored as minutes after midnight.
type ClockTime int

// Clock builds a ClockTime from hour and minute.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ClockOf returns the wall-clock time of day of t in t's location.
func ClockOf(t time.Time) ClockTime {
	return Clock(t.Hour(), t.Minute())
}

// ParseClock parses "HH:MM" (24 hour). "HH:MM:SS" is accepted and seconds are dropped.
func ParseClock(value string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%q: %w", value, ErrInvalidClock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%q: %w", value, ErrInvalidClock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%q: %w", value, ErrInvalidClock)
	}
	return Clock(hour, minute), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText implements encoding.TextMarshaler.
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
