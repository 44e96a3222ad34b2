package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/gst"
	"github.com/musharafmush/pos-sub010/internal/lock"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/offer"
)

const (
	activeOffersKey = "catalog:offers:active"
	hsnRatesKey     = "catalog:hsn:rates"

	refillLockTTL = 5 * time.Second
	refillWait    = 250 * time.Millisecond
	refillTimeout = 5 * time.Second
)

// Store is the persistence the catalog reads and writes.
type Store interface {
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
	UpdateProductTax(ctx context.Context, id uuid.UUID, tax gst.Profile) (Product, error)
	ListActiveOffers(ctx context.Context) ([]offer.Offer, error)
	ListOffers(ctx context.Context, limit, offset int) ([]offer.Offer, error)
	CreateOffer(ctx context.Context, o offer.Offer) (offer.Offer, error)
	HSNRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Service fronts the store with validation and a Redis cache for the data read on
// every quote.
type Service struct {
	store   Store
	cache   *Cache
	locker  *lock.Locker
	metrics *obs.DomainMetrics
	logger  zerolog.Logger
	refills singleflight.Group
}

// ServiceConfig groups Service dependencies. Locker is optional; when set, cache
// refills after a miss are serialised across instances.
type ServiceConfig struct {
	Store   Store
	Cache   *Cache
	Locker  *lock.Locker
	Metrics *obs.DomainMetrics
	Logger  zerolog.Logger
}

// NewService constructs a catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, locker: cfg.Locker, metrics: cfg.Metrics, logger: cfg.Logger}, nil
}

// Products loads products by id. Missing ids are reported as ErrNotFound.
func (s *Service) Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	products, err := s.store.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("product %s: %w", id, common.ErrNotFound)
		}
	}
	return products, nil
}

// UpdateProductTax validates and stores a new tax configuration for a product.
func (s *Service) UpdateProductTax(ctx context.Context, id uuid.UUID, update TaxUpdate) (Product, error) {
	profile, err := update.Profile()
	if err != nil {
		return Product{}, common.Invalid("invalid tax configuration", fmt.Errorf("%w: %w", common.ErrInvalidInput, err), nil)
	}
	products, err := s.Products(ctx, []uuid.UUID{id})
	if err != nil {
		return Product{}, err
	}
	candidate := products[id]
	candidate.Tax = profile
	if err := candidate.Validate(); err != nil {
		return Product{}, err
	}
	return s.store.UpdateProductTax(ctx, id, profile)
}

// ActiveOffers returns offers with the active flag set, served from cache when warm.
// Validity windows are not applied here.
func (s *Service) ActiveOffers(ctx context.Context) ([]offer.Offer, error) {
	offers, hit, err := readThrough(ctx, s, activeOffersKey, s.store.ListActiveOffers)
	if err != nil {
		return nil, fmt.Errorf("list active offers: %w", err)
	}
	s.metrics.CacheLookup(hit)
	return offers, nil
}

// ListOffers pages through every offer, active or not.
func (s *Service) ListOffers(ctx context.Context, page common.Pagination) ([]offer.Offer, error) {
	return s.store.ListOffers(ctx, page.PerPage, page.Offset())
}

// CreateOffer validates and stores an offer, then drops the active-offer cache.
func (s *Service) CreateOffer(ctx context.Context, o offer.Offer) (offer.Offer, error) {
	if err := o.Validate(); err != nil {
		return offer.Offer{}, common.Invalid(err.Error(), fmt.Errorf("%w: %w", common.ErrInvalidInput, err), nil)
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.UsedCount = 0
	created, err := s.store.CreateOffer(ctx, o)
	if err != nil {
		return offer.Offer{}, err
	}
	s.InvalidateOffers(ctx)
	return created, nil
}

// InvalidateOffers drops the cached active-offer list.
func (s *Service) InvalidateOffers(ctx context.Context) {
	if err := s.cache.Delete(ctx, activeOffersKey); err != nil {
		s.logger.Warn().Err(err).Msg("invalidate offer cache")
	}
}

// Resolver returns base extended with HSN rates maintained in the database.
func (s *Service) Resolver(ctx context.Context, base *gst.Resolver) (*gst.Resolver, error) {
	rates, _, err := readThrough(ctx, s, hsnRatesKey, s.store.HSNRates)
	if err != nil {
		return nil, fmt.Errorf("load hsn rates: %w", err)
	}
	if len(rates) == 0 {
		return base, nil
	}
	return base.WithOverrides(rates), nil
}

// readThrough serves key from the cache and falls back to load on a miss.
// Concurrent misses in one process share a single refill, which runs detached from
// any one caller's cancellation; each caller still stops waiting when its own
// context ends. When a locker is configured only one instance reloads a missing
// key while the others wait briefly and then re-read the cache. Cache and lock
// failures never fail the call.
func readThrough[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if s.cachedInto(ctx, key, &cached) {
		return cached, true, nil
	}

	ch := s.refills.DoChan(key, func() (any, error) {
		refillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refillTimeout)
		defer cancel()
		return refill(refillCtx, s, key, load)
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, false, res.Err
		}
		out := res.Val.(refilled[T])
		return out.value, out.hit, nil
	}
}

type refilled[T any] struct {
	value T
	hit   bool
}

func refill[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (refilled[T], error) {
	var cached T
	if s.locker != nil && s.cache.Available() {
		waitCtx, cancel := context.WithTimeout(ctx, refillWait)
		release, err := s.locker.Acquire(waitCtx, key, refillLockTTL)
		cancel()
		if err != nil {
			s.logger.Debug().Err(err).Str("key", key).Msg("cache refill lock not acquired")
		} else {
			defer release()
			if s.cachedInto(ctx, key, &cached) {
				return refilled[T]{value: cached, hit: true}, nil
			}
		}
	}

	value, err := load(ctx)
	if err != nil {
		return refilled[T]{}, err
	}
	if err := s.cache.SetJSON(ctx, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("write cache")
	}
	return refilled[T]{value: value}, nil
}

func (s *Service) cachedInto(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("read cache")
	}
	return ok
}
