package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/musharafmush/pos-sub010/internal/offer"
)

const offerColumns = `id::text, COALESCE(code, ''), name, kind, value::text, COALESCE(discount_type, ''),
min_purchase_amount::text, max_discount_amount::text, buy_quantity, get_quantity,
applicable_products::text[], applicable_categories::text[], points_threshold, loyalty_tiers,
valid_from, valid_to, to_char(time_start, 'HH24:MI'), to_char(time_end, 'HH24:MI'),
usage_limit, used_count, per_customer_limit, priority, active`

func scanOffer(row pgx.Row) (offer.Offer, error) {
	var (
		o                  offer.Offer
		id, kind, discount string
		value, minPurchase string
		maxDiscount        pgtype.Text
		products, cats     []string
		timeStart, timeEnd pgtype.Text
	)
	if err := row.Scan(&id, &o.Code, &o.Name, &kind, &value, &discount,
		&minPurchase, &maxDiscount, &o.BuyQuantity, &o.GetQuantity,
		&products, &cats, &o.PointsThreshold, &o.LoyaltyTiers,
		&o.ValidFrom, &o.ValidTo, &timeStart, &timeEnd,
		&o.UsageLimit, &o.UsedCount, &o.PerCustomerLimit, &o.Priority, &o.Active); err != nil {
		return offer.Offer{}, err
	}
	var err error
	if o.ID, err = uuid.Parse(id); err != nil {
		return offer.Offer{}, err
	}
	o.Kind = offer.Kind(kind)
	o.DiscountType = offer.Kind(discount)
	if o.Value, err = parseDecimal("value", value); err != nil {
		return offer.Offer{}, err
	}
	if o.MinPurchaseAmount, err = parseDecimal("min_purchase_amount", minPurchase); err != nil {
		return offer.Offer{}, err
	}
	if o.MaxDiscountAmount, err = parseNullDecimal("max_discount_amount", maxDiscount); err != nil {
		return offer.Offer{}, err
	}
	if o.ApplicableProducts, err = parseUUIDs("applicable_products", products); err != nil {
		return offer.Offer{}, err
	}
	if o.ApplicableCategories, err = parseUUIDs("applicable_categories", cats); err != nil {
		return offer.Offer{}, err
	}
	if o.TimeStart, err = parseNullClock(timeStart); err != nil {
		return offer.Offer{}, err
	}
	if o.TimeEnd, err = parseNullClock(timeEnd); err != nil {
		return offer.Offer{}, err
	}
	if len(o.LoyaltyTiers) == 0 {
		o.LoyaltyTiers = nil
	}
	return o, nil
}

func parseNullClock(value pgtype.Text) (*offer.ClockTime, error) {
	if !value.Valid {
		return nil, nil
	}
	c, err := offer.ParseClock(value.String)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func clockArg(c *offer.ClockTime) any {
	if c == nil {
		return nil
	}
	return c.String()
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (s *Store) queryOffers(ctx context.Context, sql string, args ...any) ([]offer.Offer, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var offers []offer.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, mapError(rows.Err())
}

// ListActiveOffers returns offers flagged active, highest precedence first.
func (s *Store) ListActiveOffers(ctx context.Context) ([]offer.Offer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryOffers(ctx, `SELECT `+offerColumns+` FROM offers WHERE active ORDER BY priority ASC, created_at ASC`)
}

// ListOffers pages through all offers, newest first.
func (s *Store) ListOffers(ctx context.Context, limit, offset int) ([]offer.Offer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryOffers(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

// CreateOffer inserts an offer. A duplicate code is reported as common.ErrConflict.
func (s *Store) CreateOffer(ctx context.Context, o offer.Offer) (offer.Offer, error) {
	if err := s.ready(); err != nil {
		return offer.Offer{}, err
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	var discountType any
	if o.DiscountType != "" {
		discountType = string(o.DiscountType)
	}
	row := s.db.QueryRow(ctx, `INSERT INTO offers (
    id, code, name, kind, value, discount_type, min_purchase_amount, max_discount_amount,
    buy_quantity, get_quantity, applicable_products, applicable_categories, points_threshold,
    loyalty_tiers, valid_from, valid_to, time_start, time_end, usage_limit, per_customer_limit,
    priority, active
) VALUES (
    $1::uuid, NULLIF($2, ''), $3, $4, $5::numeric, $6, $7::numeric, $8::numeric,
    $9, $10, $11::uuid[], $12::uuid[], $13,
    $14::text[], $15, $16, $17::time, $18::time, $19, $20,
    $21, $22
)
RETURNING `+offerColumns,
		o.ID.String(), o.Code, o.Name, string(o.Kind), o.Value.String(), discountType,
		o.MinPurchaseAmount.String(), decimalArg(o.MaxDiscountAmount),
		o.BuyQuantity, o.GetQuantity, uuidStrings(o.ApplicableProducts), uuidStrings(o.ApplicableCategories), o.PointsThreshold,
		nonNilStrings(o.LoyaltyTiers), timeArg(o.ValidFrom), timeArg(o.ValidTo), clockArg(o.TimeStart), clockArg(o.TimeEnd),
		o.UsageLimit, o.PerCustomerLimit, o.Priority, o.Active)
	created, err := scanOffer(row)
	if err != nil {
		return offer.Offer{}, mapError(err)
	}
	return created, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
