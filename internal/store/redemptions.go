package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/musharafmush/pos-sub010/internal/offer"
)

// CustomerOfferUsage counts the customer's past redemptions per offer.
func (s *Store) CustomerOfferUsage(ctx context.Context, customerID uuid.UUID) (map[uuid.UUID]int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT offer_id::text, COUNT(*) FROM offer_redemptions
WHERE customer_id = $1::uuid GROUP BY offer_id`, customerID.String())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	usage := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			raw   string
			count int64
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		usage[id] = int(count)
	}
	return usage, mapError(rows.Err())
}

// Loyalty returns the customer's loyalty account, or nil when the customer has none.
func (s *Store) Loyalty(ctx context.Context, customerID uuid.UUID) (*offer.Loyalty, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	l := offer.Loyalty{CustomerID: customerID}
	err := s.db.QueryRow(ctx, `SELECT available_points, total_earned, total_redeemed, tier
FROM customer_loyalty WHERE customer_id = $1::uuid`, customerID.String()).
		Scan(&l.AvailablePoints, &l.TotalEarned, &l.TotalRedeemed, &l.Tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &l, nil
}

// RecordRedemptions stores the offers applied to one sale in a single transaction and
// bumps each offer's used count. Redemptions already recorded for the same offer and
// sale are skipped, so replays are harmless. It returns how many rows were new.
func (s *Store) RecordRedemptions(ctx context.Context, redemptions []offer.Redemption) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(redemptions) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	recorded := 0
	for _, r := range redemptions {
		redeemedAt := r.RedeemedAt
		if redeemedAt.IsZero() {
			redeemedAt = time.Now().UTC()
		}
		tag, err := tx.Exec(ctx, `INSERT INTO offer_redemptions (offer_id, sale_id, customer_id, discount, redeemed_at)
VALUES ($1::uuid, $2, $3::uuid, $4::numeric, $5)
ON CONFLICT (offer_id, sale_id) DO NOTHING`,
			r.OfferID.String(), r.SaleID, uuidArg(r.CustomerID), r.Discount.String(), redeemedAt)
		if err != nil {
			return 0, mapError(err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE offers SET used_count = used_count + 1 WHERE id = $1::uuid`, r.OfferID.String()); err != nil {
			return 0, mapError(err)
		}
		recorded++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return recorded, nil
}

// RecordRedemption stores a single redemption. It reports false when the offer was
// already redeemed for the sale.
func (s *Store) RecordRedemption(ctx context.Context, r offer.Redemption) (bool, error) {
	n, err := s.RecordRedemptions(ctx, []offer.Redemption{r})
	return n == 1, err
}
