// Package store persists catalog, offer and redemption data in PostgreSQL via pgx.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/common"
)

// ErrUnavailable indicates the database dependency is not configured.
var ErrUnavailable = errors.New("store: database unavailable")

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Store is the PostgreSQL implementation of the billing persistence interfaces.
type Store struct {
	db DB
}

// New constructs a Store over a pgx pool.
func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	return nil
}

// mapError translates driver errors into the common sentinels handlers understand.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", common.ErrNotFound, pgErr.ConstraintName)
		case pgerrcode.CheckViolation, pgerrcode.NumericValueOutOfRange:
			return fmt.Errorf("%w: %s", common.ErrInvalidInput, pgErr.Message)
		}
	}
	return err
}

// Numerics travel as text so decimal precision never passes through float64.

func parseDecimal(column, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("scan %s: %w", column, err)
	}
	return d, nil
}

func parseNullDecimal(column string, value pgtype.Text) (*decimal.Decimal, error) {
	if !value.Valid {
		return nil, nil
	}
	d, err := parseDecimal(column, value.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func uuidArg(id *uuid.UUID) any {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id.String()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(column string, values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		out = append(out, id)
	}
	return out, nil
}
