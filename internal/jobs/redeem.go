package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/offer"
)

// Recorder persists redemptions and reports how many were new.
type Recorder interface {
	RecordRedemptions(ctx context.Context, redemptions []offer.Redemption) (int, error)
}

// OfferCache is invalidated when used counts change.
type OfferCache interface {
	InvalidateOffers(ctx context.Context)
}

// RedeemJob processes TaskTypeRedeemOffers tasks.
type RedeemJob struct {
	store    Recorder
	cache    OfferCache
	metrics  *obs.DomainMetrics
	recorded metric.Int64Counter
	logger   zerolog.Logger
}

// NewRedeemJob constructs the handler. A nil meter falls back to the global provider.
func NewRedeemJob(store Recorder, metrics *obs.DomainMetrics, meter metric.Meter, logger zerolog.Logger) (*RedeemJob, error) {
	if store == nil {
		return nil, errors.New("jobs: redemption store is required")
	}
	if meter == nil {
		meter = otel.Meter("github.com/musharafmush/pos-sub010/internal/jobs")
	}
	counter, err := meter.Int64Counter("pos.offer.redemptions",
		metric.WithDescription("Offer redemptions written by the worker."),
		metric.WithUnit("{redemption}"))
	if err != nil {
		return nil, err
	}
	return &RedeemJob{store: store, metrics: metrics, recorded: counter, logger: logger}, nil
}

// WithCache makes the job drop cached offers after new redemptions so usage limits
// are enforced against fresh counts.
func (j *RedeemJob) WithCache(cache OfferCache) *RedeemJob {
	j.cache = cache
	return j
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *RedeemJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload RedeemPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		j.metrics.Redemption("invalid")
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		j.metrics.Redemption("invalid")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	recorded, err := j.store.RecordRedemptions(ctx, payload.Redemptions())
	if err != nil {
		j.metrics.Redemption("failed")
		j.logger.Error().Err(err).Str("sale_id", payload.SaleID).Msg("record redemptions")
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("sale %s references an unknown offer: %v: %w", payload.SaleID, err, asynq.SkipRetry)
		}
		return err
	}

	duplicates := len(payload.Offers) - recorded
	for range recorded {
		j.metrics.Redemption("recorded")
	}
	for range duplicates {
		j.metrics.Redemption("duplicate")
	}
	if recorded > 0 && j.cache != nil {
		j.cache.InvalidateOffers(ctx)
	}
	j.recorded.Add(ctx, int64(recorded), metric.WithAttributes(attribute.String("result", "recorded")))
	j.logger.Info().
		Str("sale_id", payload.SaleID).
		Int("recorded", recorded).
		Int("duplicates", duplicates).
		Msg("offer redemptions recorded")
	return nil
}
