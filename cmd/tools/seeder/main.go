package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/musharafmush/pos-sub010/internal/app"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/offer"
	"github.com/musharafmush/pos-sub010/internal/store"
)

var (
	groceryCategory = uuid.MustParse("6f1c2a7e-0d3b-4c55-9a51-3f3c1c8b0a01")
	personalCare    = uuid.MustParse("6f1c2a7e-0d3b-4c55-9a51-3f3c1c8b0a02")
	demoCustomer    = uuid.MustParse("0b9e5a34-7f52-4c1e-8d3a-2f6a1b9c4e10")
)

type productSeed struct {
	SKU      string
	Name     string
	Category uuid.UUID
	Price    string
	MRP      string
	HSN      string
	GSTRate  string
	Method   string
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := app.RunMigrations(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	pool, err := app.NewPool(ctx, dbURL, "pos-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	seedHSNRates(ctx, pool, logger)
	seedProducts(ctx, pool, logger)
	seedOffers(ctx, store.New(pool), logger)
	seedLoyalty(ctx, pool, logger)

	logger.Info().Msg("seeding completed")
}

func seedHSNRates(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) {
	rates := []struct {
		Code, Rate, Description string
	}{
		{"30049099", "12", "other medicaments"},
		{"33051090", "18", "shampoo"},
		{"19059020", "18", "rusks and toasted bread"},
		{"04061000", "5", "fresh paneer"},
	}
	for _, r := range rates {
		_, err := pool.Exec(ctx, `
			INSERT INTO hsn_rates (hsn_code, gst_rate, description)
			VALUES ($1, $2::numeric, $3)
			ON CONFLICT (hsn_code) DO UPDATE SET gst_rate = EXCLUDED.gst_rate, description = EXCLUDED.description, updated_at = NOW()`,
			r.Code, r.Rate, r.Description)
		if err != nil {
			logger.Error().Err(err).Str("hsn_code", r.Code).Msg("seed hsn rate")
		}
	}
	logger.Info().Int("count", len(rates)).Msg("hsn rates seeded")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) {
	products := []productSeed{
		{"GRO-RICE-1KG", "Basmati Rice 1kg", groceryCategory, "120.00", "135.00", "1006", "", "inclusive"},
		{"GRO-ATTA-5KG", "Whole Wheat Atta 5kg", groceryCategory, "265.00", "280.00", "1101", "", "inclusive"},
		{"GRO-TEA-250", "Assam Tea 250g", groceryCategory, "140.00", "150.00", "0902", "5", "inclusive"},
		{"GRO-BISC-200", "Butter Biscuits 200g", groceryCategory, "40.00", "40.00", "1905", "18", "inclusive"},
		{"GRO-COLA-750", "Cola 750ml", groceryCategory, "45.00", "45.00", "2202", "28", "inclusive"},
		{"GRO-MILK-1L", "Toned Milk 1L", groceryCategory, "54.00", "54.00", "0401", "0", "exclusive"},
		{"PC-SOAP-100", "Sandal Soap 100g", personalCare, "38.00", "42.00", "3401", "", "exclusive"},
		{"PC-SHAMPOO-180", "Herbal Shampoo 180ml", personalCare, "149.00", "165.00", "33051090", "", "exclusive"},
		{"PC-PASTE-150", "Toothpaste 150g", personalCare, "95.00", "99.00", "3306", "18", "exclusive"},
	}
	for _, p := range products {
		var rate any
		if p.GSTRate != "" {
			rate = p.GSTRate
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO products (sku, name, category_id, price, mrp, hsn_code, gst_rate, tax_calculation_method)
			VALUES ($1, $2, $3::uuid, $4::numeric, $5::numeric, $6, $7::numeric, $8)
			ON CONFLICT (sku) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				mrp = EXCLUDED.mrp,
				hsn_code = EXCLUDED.hsn_code,
				gst_rate = EXCLUDED.gst_rate,
				tax_calculation_method = EXCLUDED.tax_calculation_method,
				updated_at = NOW()`,
			p.SKU, p.Name, p.Category.String(), p.Price, p.MRP, p.HSN, rate, p.Method)
		if err != nil {
			logger.Error().Err(err).Str("sku", p.SKU).Msg("seed product")
		}
	}
	logger.Info().Int("count", len(products)).Msg("products seeded")
}

func seedOffers(ctx context.Context, st *store.Store, logger zerolog.Logger) {
	dec := decimal.RequireFromString
	maxDiscount := dec("150")
	perCustomer := int32(1)
	usageLimit := int32(500)
	eveningStart, eveningEnd := offer.Clock(17, 0), offer.Clock(20, 0)

	offers := []offer.Offer{
		{Code: "SAVE10", Name: "10% off above 1000", Kind: offer.KindPercentage, Value: dec("10"),
			MinPurchaseAmount: dec("1000"), MaxDiscountAmount: &maxDiscount, Priority: 1},
		{Code: "FLAT50", Name: "Flat 50 off above 500", Kind: offer.KindFlatAmount, Value: dec("50"),
			MinPurchaseAmount: dec("500"), PerCustomerLimit: &perCustomer, UsageLimit: &usageLimit, Priority: 2},
		{Code: "SOAP3FOR2", Name: "Buy 2 soaps get 1 free", Kind: offer.KindBuyXGetY, BuyQuantity: 2, GetQuantity: 1,
			Priority: 3},
		{Code: "CARE15", Name: "15% off personal care", Kind: offer.KindCategoryBased, Value: dec("15"),
			ApplicableCategories: []uuid.UUID{personalCare}, Priority: 4},
		{Code: "GOLD100", Name: "Gold members 100 off", Kind: offer.KindLoyaltyPoints, Value: dec("100"),
			PointsThreshold: 500, LoyaltyTiers: []string{"gold", "platinum"}, Priority: 5},
		{Code: "EVENING5", Name: "Evening 5% off", Kind: offer.KindTimeBased, Value: dec("5"),
			TimeStart: &eveningStart, TimeEnd: &eveningEnd, Priority: 6},
	}
	created := 0
	for _, o := range offers {
		o.Active = true
		if err := o.Validate(); err != nil {
			logger.Error().Err(err).Str("code", o.Code).Msg("invalid seed offer")
			continue
		}
		o.ID = uuid.New()
		if _, err := st.CreateOffer(ctx, o); err != nil {
			if errors.Is(err, common.ErrConflict) {
				continue
			}
			logger.Error().Err(err).Str("code", o.Code).Msg("seed offer")
			continue
		}
		created++
	}
	logger.Info().Int("created", created).Int("total", len(offers)).Msg("offers seeded")
}

func seedLoyalty(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) {
	_, err := pool.Exec(ctx, `
		INSERT INTO customer_loyalty (customer_id, available_points, total_earned, total_redeemed, tier)
		VALUES ($1::uuid, 750, 1200, 450, 'gold')
		ON CONFLICT (customer_id) DO NOTHING`, demoCustomer.String())
	if err != nil {
		logger.Error().Err(err).Msg("seed loyalty")
		return
	}
	logger.Info().Str("customer_id", demoCustomer.String()).Msg("loyalty account seeded")
}
