// Package billing exposes sale quoting, tax lookups and offer administration over HTTP.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/musharafmush/pos-sub010/internal/catalog"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/gst"
	"github.com/musharafmush/pos-sub010/internal/jobs"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/offer"
	"github.com/musharafmush/pos-sub010/internal/pricing"
)

// Catalog is the product and offer source a quote reads from.
type Catalog interface {
	Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
	UpdateProductTax(ctx context.Context, id uuid.UUID, update catalog.TaxUpdate) (catalog.Product, error)
	ActiveOffers(ctx context.Context) ([]offer.Offer, error)
	ListOffers(ctx context.Context, page common.Pagination) ([]offer.Offer, error)
	CreateOffer(ctx context.Context, o offer.Offer) (offer.Offer, error)
	Resolver(ctx context.Context, base *gst.Resolver) (*gst.Resolver, error)
}

// Customers provides per-customer offer history and loyalty.
type Customers interface {
	CustomerOfferUsage(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]int, error)
	Loyalty(ctx context.Context, customerID uuid.UUID) (*offer.Loyalty, error)
}

// Redemptions hands completed-sale redemptions to the worker.
type Redemptions interface {
	EnqueueRedemption(ctx context.Context, payload jobs.RedeemPayload) error
}

// Service computes quotes and fronts catalog administration.
type Service struct {
	catalog     Catalog
	customers   Customers
	redemptions Redemptions
	settings    pricing.Settings
	metrics     *obs.DomainMetrics
	logger      zerolog.Logger
	now         func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Catalog     Catalog
	Customers   Customers
	Redemptions Redemptions
	Settings    pricing.Settings
	Metrics     *obs.DomainMetrics
	Logger      zerolog.Logger
	Now         func() time.Time
}

// NewService constructs a billing service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("billing: catalog is required")
	}
	if cfg.Settings.Resolver == nil {
		cfg.Settings.Resolver = gst.NewResolver(gst.DefaultRate)
	}
	if cfg.Settings.Location == nil {
		cfg.Settings.Location = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:     cfg.Catalog,
		customers:   cfg.Customers,
		redemptions: cfg.Redemptions,
		settings:    cfg.Settings,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         now,
	}, nil
}

// Quote prices a cart with the business's tax settings and the currently active offers.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (pricing.Quote, error) {
	buyer, err := parseState("buyerState", req.BuyerState)
	if err != nil {
		return pricing.Quote{}, err
	}
	interState := gst.Jurisdiction{Supplier: s.settings.Supplier, Buyer: buyer}.InterState()
	q, err := s.quote(ctx, req, buyer)
	if err != nil {
		s.metrics.Quote(interState, "error")
		return pricing.Quote{}, err
	}
	s.metrics.Quote(interState, "ok")
	for _, a := range q.Offers.Selected {
		s.metrics.OfferSelected(string(a.Kind), a.Discount.InexactFloat64())
	}
	return q.Rounded(), nil
}

func (s *Service) quote(ctx context.Context, req QuoteRequest, buyer gst.StateCode) (pricing.Quote, error) {
	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for i, item := range req.Items {
		// Negative quantities are return lines; they reduce the cart and carry negative tax.
		if item.Quantity.IsZero() {
			field := fmt.Sprintf("items[%d].quantity", i)
			return pricing.Quote{}, common.Invalid("quantity must not be zero", nil, map[string]string{field: "must not be zero"})
		}
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	var (
		products map[uuid.UUID]catalog.Product
		offers   []offer.Offer
		usage    map[uuid.UUID]int
		loyalty  *offer.Loyalty
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.Products(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		offers, err = s.catalog.ActiveOffers(gctx)
		return err
	})
	if req.CustomerID != nil && s.customers != nil {
		customerID := *req.CustomerID
		g.Go(func() error {
			var err error
			if usage, err = s.customers.CustomerOfferUsage(gctx, customerID); err != nil {
				return fmt.Errorf("load offer usage: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if loyalty, err = s.customers.Loyalty(gctx, customerID); err != nil {
				return fmt.Errorf("load loyalty: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pricing.Quote{}, err
	}

	items := make([]pricing.Item, 0, len(req.Items))
	for i, line := range req.Items {
		p := products[line.ProductID]
		if !p.Active {
			field := fmt.Sprintf("items[%d].productId", i)
			return pricing.Quote{}, common.Invalid("product is not available for sale", nil, map[string]string{field: "inactive"})
		}
		items = append(items, pricing.Item{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			Name:       p.Name,
			Quantity:   line.Quantity,
			UnitPrice:  p.Price,
			Tax:        p.Tax,
		})
	}

	return pricing.Compute(s.currentSettings(ctx), pricing.Input{
		Items:         items,
		Buyer:         buyer,
		Offers:        offers,
		CustomerUsage: usage,
		Loyalty:       loyalty,
		Now:           s.now(),
	}), nil
}

// currentSettings layers database HSN rates over the configured resolver. A cache or
// store failure degrades to the built-in table.
func (s *Service) currentSettings(ctx context.Context) pricing.Settings {
	settings := s.settings
	resolver, err := s.catalog.Resolver(ctx, s.settings.Resolver)
	if err != nil {
		s.logger.Warn().Err(err).Msg("hsn overrides unavailable, using built-in rates")
		return settings
	}
	settings.Resolver = resolver
	return settings
}

// LineTax computes the tax for a single amount outside of any cart.
func (s *Service) LineTax(ctx context.Context, req LineTaxRequest) (LineTaxResult, error) {
	supplier := s.settings.Supplier
	if req.SupplierState != "" {
		var err error
		if supplier, err = parseState("supplierState", req.SupplierState); err != nil {
			return LineTaxResult{}, err
		}
	}
	buyer, err := parseState("buyerState", req.BuyerState)
	if err != nil {
		return LineTaxResult{}, err
	}
	mode, err := gst.ParseMode(req.Method)
	if err != nil {
		return LineTaxResult{}, common.Invalid("invalid taxCalculationMethod", fmt.Errorf("%w: %w", common.ErrInvalidInput, err), nil)
	}
	if err := gst.ValidateRate(req.CessRate); err != nil {
		return LineTaxResult{}, common.Invalid("invalid cessRate", fmt.Errorf("%w: %w", common.ErrInvalidInput, err), map[string]string{"cessRate": rateDetail(err)})
	}

	res := LineTaxResult{Amount: req.Amount, Method: mode}
	rate := decimal.Zero
	switch {
	case req.Rate != nil:
		if err := gst.ValidateRate(*req.Rate); err != nil {
			return LineTaxResult{}, common.Invalid("invalid gstRate", fmt.Errorf("%w: %w", common.ErrInvalidInput, err), map[string]string{"gstRate": rateDetail(err)})
		}
		rate = *req.Rate
	default:
		var found bool
		rate, found = s.currentSettings(ctx).Resolver.LookupRate(req.HSNCode)
		res.HSNFound = &found
	}

	res.Jurisdiction = gst.Jurisdiction{Supplier: supplier, Buyer: buyer}
	res.Split = res.Jurisdiction.Split(rate).WithCess(req.CessRate)
	res.Rate = rate
	line, breakdown := gst.ComputeBreakdown(req.Amount, res.Split, mode)
	res.Line = line.Rounded()
	res.Tax = breakdown.Rounded()
	return res, nil
}

// HSNRate resolves an HSN code to its suggested rate.
func (s *Service) HSNRate(ctx context.Context, code string) (HSNResult, error) {
	rate, found := s.currentSettings(ctx).Resolver.LookupRate(code)
	return HSNResult{
		HSNCode: code,
		Rate:    rate,
		Found:   found,
		Intra:   gst.Jurisdiction{}.Split(rate),
	}, nil
}

// Redeem queues the redemption of the offers applied to a completed sale. A sale
// already queued is reported with queued=false and no error.
func (s *Service) Redeem(ctx context.Context, payload jobs.RedeemPayload) (bool, error) {
	if s.redemptions == nil {
		return false, common.NewAppError("REDEMPTION_UNAVAILABLE", "redemption queue is not configured", http.StatusServiceUnavailable, nil)
	}
	if err := payload.Validate(); err != nil {
		return false, common.Invalid(err.Error(), fmt.Errorf("%w: %w", common.ErrInvalidInput, err), nil)
	}
	if payload.RedeemedAt.IsZero() {
		payload.RedeemedAt = s.now().UTC()
	}
	err := s.redemptions.EnqueueRedemption(ctx, payload)
	if errors.Is(err, jobs.ErrAlreadyQueued) {
		s.metrics.Redemption("requeued")
		return false, nil
	}
	if err != nil {
		s.metrics.Redemption("enqueue_failed")
		return false, fmt.Errorf("enqueue redemption: %w", err)
	}
	s.metrics.Redemption("queued")
	s.logger.Info().Str("sale_id", payload.SaleID).Int("offers", len(payload.Offers)).Msg("redemption queued")
	return true, nil
}

// CreateOffer validates and stores an offer.
func (s *Service) CreateOffer(ctx context.Context, o offer.Offer) (offer.Offer, error) {
	return s.catalog.CreateOffer(ctx, o)
}

// ListOffers pages through configured offers.
func (s *Service) ListOffers(ctx context.Context, page common.Pagination) ([]offer.Offer, error) {
	return s.catalog.ListOffers(ctx, page)
}

// UpdateProductTax replaces a product's tax configuration.
func (s *Service) UpdateProductTax(ctx context.Context, id uuid.UUID, update catalog.TaxUpdate) (catalog.Product, error) {
	return s.catalog.UpdateProductTax(ctx, id, update)
}

func rateDetail(err error) string {
	if errors.Is(err, gst.ErrRatePrecision) {
		return "at most 4 decimal places"
	}
	return "must be between 0 and 100"
}

func parseState(field, value string) (gst.StateCode, error) {
	code, err := gst.ParseState(value)
	if err != nil {
		return "", common.Invalid("unknown state", fmt.Errorf("%w: %w", common.ErrInvalidInput, err), map[string]string{field: "unknown state"})
	}
	return code, nil
}
