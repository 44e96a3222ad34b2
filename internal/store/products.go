package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/catalog"
	"github.com/musharafmush/pos-sub010/internal/gst"
)

const productColumns = `id::text, sku, name, category_id::text, price::text, mrp::text, hsn_code,
gst_rate::text, cgst_rate::text, sgst_rate::text, igst_rate::text, cess_rate::text,
tax_calculation_method, tax_selection_mode, active`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p                      catalog.Product
		id                     string
		category, mrp, gstRate pgtype.Text
		price, cgst, sgst      string
		igst, cess             string
		method, selection      string
	)
	if err := row.Scan(&id, &p.SKU, &p.Name, &category, &price, &mrp, &p.Tax.HSNCode,
		&gstRate, &cgst, &sgst, &igst, &cess, &method, &selection, &p.Active); err != nil {
		return catalog.Product{}, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return catalog.Product{}, err
	}
	if category.Valid {
		if p.CategoryID, err = uuid.Parse(category.String); err != nil {
			return catalog.Product{}, err
		}
	}
	if p.Price, err = parseDecimal("price", price); err != nil {
		return catalog.Product{}, err
	}
	if p.MRP, err = parseNullDecimal("mrp", mrp); err != nil {
		return catalog.Product{}, err
	}
	if p.Tax.GSTRate, err = parseNullDecimal("gst_rate", gstRate); err != nil {
		return catalog.Product{}, err
	}
	for _, f := range []struct {
		column string
		raw    string
		dst    *decimal.Decimal
	}{
		{"cgst_rate", cgst, &p.Tax.CGSTRate},
		{"sgst_rate", sgst, &p.Tax.SGSTRate},
		{"igst_rate", igst, &p.Tax.IGSTRate},
		{"cess_rate", cess, &p.Tax.CESSRate},
	} {
		if *f.dst, err = parseDecimal(f.column, f.raw); err != nil {
			return catalog.Product{}, err
		}
	}
	p.Tax.Method = gst.Mode(method)
	p.Tax.Selection = gst.Selection(selection)
	return p, nil
}

// ProductsByIDs loads the given products keyed by id. Unknown ids are omitted.
func (s *Store) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, mapError(rows.Err())
}

// UpdateProductTax replaces a product's tax configuration and returns the stored row.
func (s *Store) UpdateProductTax(ctx context.Context, id uuid.UUID, tax gst.Profile) (catalog.Product, error) {
	if err := s.ready(); err != nil {
		return catalog.Product{}, err
	}
	selection := tax.Selection
	if selection == "" {
		selection = gst.SelectionAuto
	}
	row := s.db.QueryRow(ctx, `UPDATE products SET
    hsn_code = $2,
    gst_rate = $3::numeric,
    cgst_rate = $4::numeric,
    sgst_rate = $5::numeric,
    igst_rate = $6::numeric,
    cess_rate = $7::numeric,
    tax_calculation_method = $8,
    tax_selection_mode = $9,
    updated_at = NOW()
WHERE id = $1::uuid
RETURNING `+productColumns,
		id.String(), tax.HSNCode, decimalArg(tax.GSTRate),
		tax.CGSTRate.String(), tax.SGSTRate.String(), tax.IGSTRate.String(), tax.CESSRate.String(),
		string(tax.Mode()), string(selection))
	p, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, mapError(err)
	}
	return p, nil
}

// HSNRates returns the rate table maintained in the database.
func (s *Store) HSNRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT hsn_code, gst_rate::text FROM hsn_rates`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	rates := make(map[string]decimal.Decimal)
	for rows.Next() {
		var code, raw string
		if err := rows.Scan(&code, &raw); err != nil {
			return nil, err
		}
		rate, err := parseDecimal("gst_rate", raw)
		if err != nil {
			return nil, err
		}
		rates[code] = rate
	}
	return rates, mapError(rows.Err())
}
