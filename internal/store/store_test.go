package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/musharafmush/pos-sub010/internal/audit"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/offer"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

type fakeTx struct {
	pgx.Tx
	inserted   map[string]bool
	execs      []string
	failUpdate bool
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	if strings.HasPrefix(sql, "INSERT") {
		key := args[0].(string) + "|" + args[1].(string)
		if t.inserted[key] {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		t.inserted[key] = true
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	if t.failUpdate {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23503", ConstraintName: "offer_redemptions_offer_id_fkey"}
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	DB
	tx  *fakeTx
	row pgx.Row
}

func (f *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	f.tx.committed, f.tx.rolledBack = false, false
	return f.tx, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestMapError(t *testing.T) {
	require.ErrorIs(t, mapError(pgx.ErrNoRows), common.ErrNotFound)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23505", ConstraintName: "offers_code_key"}), common.ErrConflict)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23503"}), common.ErrNotFound)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23514", Message: "violates check"}), common.ErrInvalidInput)

	other := errors.New("boom")
	require.Equal(t, other, mapError(other))
	require.NoError(t, mapError(nil))
}

func TestNilStoreIsUnavailable(t *testing.T) {
	var s *Store
	_, err := s.ListActiveOffers(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = New(nil).RecordRedemptions(context.Background(), []offer.Redemption{{}})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRecordRedemptionsSkipsReplays(t *testing.T) {
	tx := &fakeTx{inserted: map[string]bool{}}
	s := New(&fakeDB{tx: tx})
	ctx := context.Background()
	customer := uuid.New()
	batch := []offer.Redemption{
		{OfferID: uuid.New(), SaleID: "S-1001", CustomerID: &customer, Discount: decimal.NewFromInt(150)},
		{OfferID: uuid.New(), SaleID: "S-1001", Discount: decimal.NewFromInt(50)},
	}

	n, err := s.RecordRedemptions(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, tx.committed)
	require.Len(t, tx.execs, 4)

	tx.execs = nil
	n, err = s.RecordRedemptions(ctx, batch)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, tx.execs, 2)
	for _, sql := range tx.execs {
		require.True(t, strings.HasPrefix(sql, "INSERT"))
	}
}

func TestRecordRedemptionsRollsBackOnFailure(t *testing.T) {
	tx := &fakeTx{inserted: map[string]bool{}, failUpdate: true}
	s := New(&fakeDB{tx: tx})

	_, err := s.RecordRedemptions(context.Background(), []offer.Redemption{{OfferID: uuid.New(), SaleID: "S-1"}})
	require.ErrorIs(t, err, common.ErrNotFound)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestLoyalty(t *testing.T) {
	customer := uuid.New()
	s := New(&fakeDB{row: fakeRow{values: []any{int64(1200), int64(5000), int64(3800), "gold"}}})
	l, err := s.Loyalty(context.Background(), customer)
	require.NoError(t, err)
	require.Equal(t, &offer.Loyalty{CustomerID: customer, AvailablePoints: 1200, TotalEarned: 5000, TotalRedeemed: 3800, Tier: "gold"}, l)

	s = New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})
	l, err = s.Loyalty(context.Background(), customer)
	require.NoError(t, err)
	require.Nil(t, l)
}

func TestScanOffer(t *testing.T) {
	id := uuid.New()
	product := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := int32(100)
	row := fakeRow{values: []any{
		id.String(), "HAPPY5", "Happy hour", "time_based", "5.00", "",
		"500.00", pgtype.Text{String: "200.00", Valid: true}, 0, 0,
		[]string{product.String()}, []string{}, int64(0), []string{},
		&from, (*time.Time)(nil), pgtype.Text{String: "16:00", Valid: true}, pgtype.Text{String: "18:30", Valid: true},
		&limit, int32(7), (*int32)(nil), 2, true,
	}}

	o, err := scanOffer(row)
	require.NoError(t, err)
	require.Equal(t, id, o.ID)
	require.Equal(t, offer.KindTimeBased, o.Kind)
	require.True(t, o.Value.Equal(decimal.NewFromInt(5)))
	require.True(t, o.MaxDiscountAmount.Equal(decimal.NewFromInt(200)))
	require.Equal(t, []uuid.UUID{product}, o.ApplicableProducts)
	require.Nil(t, o.ApplicableCategories)
	require.Nil(t, o.LoyaltyTiers)
	require.Equal(t, offer.Clock(16, 0), *o.TimeStart)
	require.Equal(t, offer.Clock(18, 30), *o.TimeEnd)
	require.Equal(t, from, *o.ValidFrom)
	require.Nil(t, o.ValidTo)
	require.Equal(t, int32(100), *o.UsageLimit)
	require.Equal(t, int32(7), o.UsedCount)
	require.Nil(t, o.PerCustomerLimit)
	require.Equal(t, 2, o.Priority)
	require.True(t, o.Active)
}

func TestScanProductParsesNumericText(t *testing.T) {
	id := uuid.New()
	row := fakeRow{values: []any{
		id.String(), "SKU-1", "Biscuits", pgtype.Text{}, "100.00", pgtype.Text{String: "120.00", Valid: true}, "1905",
		pgtype.Text{}, "9.00", "9.00", "18.00", "0.00", "inclusive", "auto", true,
	}}
	p, err := scanProduct(row)
	require.NoError(t, err)
	require.Equal(t, id, p.ID)
	require.Equal(t, uuid.Nil, p.CategoryID)
	require.Equal(t, "100", p.Price.String())
	require.Equal(t, "120", p.MRP.String())
	require.Nil(t, p.Tax.GSTRate)
	require.Equal(t, "18", p.Tax.IGSTRate.String())
	require.NoError(t, p.Validate())

	bad := fakeRow{values: append([]any{}, row.values...)}
	bad.values[4] = "not-a-number"
	_, err = scanProduct(bad)
	require.Error(t, err)
}

func TestScanProductKeepsQuarterPercentRates(t *testing.T) {
	row := fakeRow{values: []any{
		uuid.New().String(), "SKU-2", "Gold coin", pgtype.Text{}, "5000.00", pgtype.Text{}, "7108",
		pgtype.Text{String: "0.2500", Valid: true}, "0.1250", "0.1250", "0.2500", "0.0000", "exclusive", "auto", true,
	}}
	p, err := scanProduct(row)
	require.NoError(t, err)
	require.NotNil(t, p.Tax.GSTRate)
	require.True(t, p.Tax.GSTRate.Equal(decimal.RequireFromString("0.25")))
	require.True(t, p.Tax.CGSTRate.Equal(decimal.RequireFromString("0.125")))
	require.True(t, p.Tax.SGSTRate.Equal(decimal.RequireFromString("0.125")))
	require.NoError(t, p.Validate())
}

type recordingDB struct {
	DB
	sql  string
	args []any
}

func (r *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestInsertAuditEntry(t *testing.T) {
	db := &recordingDB{}
	err := New(db).InsertAuditEntry(context.Background(), audit.Entry{
		Action: "offer.create", ResourceType: "offer", Method: "POST", Path: "/api/v1/admin/offers",
		Status: 201, Metadata: []byte(`{"code":"SAVE10"}`),
	})
	require.NoError(t, err)
	require.Contains(t, db.sql, "INSERT INTO audit_logs")
	require.Len(t, db.args, 12)
	require.Equal(t, `{"code":"SAVE10"}`, db.args[11])

	require.NoError(t, New(db).InsertAuditEntry(context.Background(), audit.Entry{Action: "x"}))
	require.Nil(t, db.args[11])
}

func TestScanAuditEntry(t *testing.T) {
	at := time.Date(2024, 6, 1, 6, 30, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		int64(9), "product.tax.update", "product", "p-1", "T-07",
		"PUT", "/api/v1/admin/products/p-1/tax", "/api/v1/admin/products/{id}/tax", int32(200), "10.0.0.2", "till/2.1",
		"req-1", pgtype.Text{String: `{"ok":true}`, Valid: true}, at,
	}}
	e, err := scanAuditEntry(row)
	require.NoError(t, err)
	require.Equal(t, int64(9), e.ID)
	require.Equal(t, 200, e.Status)
	require.Equal(t, "T-07", e.TerminalID)
	require.JSONEq(t, `{"ok":true}`, string(e.Metadata))
	require.Equal(t, at, e.CreatedAt)
}
