// Package jobs defines the background tasks run by the worker binary on asynq.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/offer"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRedeemOffers records the offers applied to a completed sale.
	TaskTypeRedeemOffers = "offer:redeem"

	redeemRetention = 24 * time.Hour
	redeemMaxRetry  = 10
)

// ErrInvalidPayload marks task payloads that can never succeed.
var ErrInvalidPayload = errors.New("jobs: invalid payload")

// RedeemedOffer is one offer applied to the sale.
type RedeemedOffer struct {
	OfferID  uuid.UUID       `json:"offerId" validate:"required"`
	Discount decimal.Decimal `json:"discount"`
}

// RedeemPayload describes the redemptions of a completed sale.
type RedeemPayload struct {
	SaleID     string          `json:"saleId" validate:"required,max=64"`
	CustomerID *uuid.UUID      `json:"customerId,omitempty"`
	Offers     []RedeemedOffer `json:"offers" validate:"required,min=1,dive"`
	RedeemedAt time.Time       `json:"redeemedAt"`
}

// Validate checks the payload can be recorded.
func (p RedeemPayload) Validate() error {
	if p.SaleID == "" {
		return fmt.Errorf("%w: saleId is required", ErrInvalidPayload)
	}
	if len(p.Offers) == 0 {
		return fmt.Errorf("%w: at least one offer is required", ErrInvalidPayload)
	}
	for i, o := range p.Offers {
		if o.OfferID == uuid.Nil {
			return fmt.Errorf("%w: offers[%d].offerId is required", ErrInvalidPayload, i)
		}
		if o.Discount.IsNegative() {
			return fmt.Errorf("%w: offers[%d].discount must not be negative", ErrInvalidPayload, i)
		}
	}
	return nil
}

// Redemptions expands the payload into one redemption per offer.
func (p RedeemPayload) Redemptions() []offer.Redemption {
	out := make([]offer.Redemption, 0, len(p.Offers))
	for _, o := range p.Offers {
		out = append(out, offer.Redemption{
			OfferID:    o.OfferID,
			SaleID:     p.SaleID,
			CustomerID: p.CustomerID,
			Discount:   o.Discount,
			RedeemedAt: p.RedeemedAt,
		})
	}
	return out
}

// RedeemTaskID is the task id used to deduplicate enqueues for a sale.
func RedeemTaskID(saleID string) string {
	return TaskTypeRedeemOffers + ":" + saleID
}

// NewRedeemTask constructs the redemption task for a sale.
func NewRedeemTask(payload RedeemPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRedeemOffers, data,
		asynq.TaskID(RedeemTaskID(payload.SaleID)),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(redeemMaxRetry),
		asynq.Retention(redeemRetention),
	), nil
}
