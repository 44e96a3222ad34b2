package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/musharafmush/pos-sub010/internal/audit"
	"github.com/musharafmush/pos-sub010/internal/billing"
	"github.com/musharafmush/pos-sub010/internal/catalog"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/gst"
	"github.com/musharafmush/pos-sub010/internal/health"
	"github.com/musharafmush/pos-sub010/internal/jobs"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/offer"
	"github.com/musharafmush/pos-sub010/internal/pricing"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

type fakeCatalog struct {
	products  map[uuid.UUID]catalog.Product
	offers    []offer.Offer
	created   []offer.Offer
	createErr error
	hsn       map[string]decimal.Decimal
}

func (f *fakeCatalog) Products(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	for _, id := range ids {
		p, ok := f.products[id]
		if !ok {
			return nil, fmt.Errorf("product %s: %w", id, common.ErrNotFound)
		}
		out[id] = p
	}
	return out, nil
}

func (f *fakeCatalog) UpdateProductTax(_ context.Context, id uuid.UUID, update catalog.TaxUpdate) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, common.ErrNotFound
	}
	profile, err := update.Profile()
	if err != nil {
		return catalog.Product{}, common.Invalid(err.Error(), nil, nil)
	}
	p.Tax = profile
	f.products[id] = p
	return p, nil
}

func (f *fakeCatalog) ActiveOffers(context.Context) ([]offer.Offer, error) {
	return f.offers, nil
}

func (f *fakeCatalog) ListOffers(_ context.Context, page common.Pagination) ([]offer.Offer, error) {
	if page.Offset() >= len(f.offers) {
		return nil, nil
	}
	return f.offers[page.Offset():min(page.Offset()+page.PerPage, len(f.offers))], nil
}

func (f *fakeCatalog) CreateOffer(_ context.Context, o offer.Offer) (offer.Offer, error) {
	if err := o.Validate(); err != nil {
		return offer.Offer{}, common.Invalid(err.Error(), fmt.Errorf("%w: %w", common.ErrInvalidInput, err), nil)
	}
	if f.createErr != nil {
		return offer.Offer{}, f.createErr
	}
	o.ID = uuid.New()
	f.created = append(f.created, o)
	return o, nil
}

func (f *fakeCatalog) Resolver(_ context.Context, base *gst.Resolver) (*gst.Resolver, error) {
	return base.WithOverrides(f.hsn), nil
}

type fakeCustomers struct {
	usage   map[uuid.UUID]int
	loyalty *offer.Loyalty
}

func (f fakeCustomers) CustomerOfferUsage(context.Context, uuid.UUID) (map[uuid.UUID]int, error) {
	return f.usage, nil
}

func (f fakeCustomers) Loyalty(context.Context, uuid.UUID) (*offer.Loyalty, error) {
	return f.loyalty, nil
}

type fakeQueue struct {
	payloads []jobs.RedeemPayload
	seen     map[string]bool
}

func (f *fakeQueue) EnqueueRedemption(_ context.Context, p jobs.RedeemPayload) error {
	if f.seen[p.SaleID] {
		return jobs.ErrAlreadyQueued
	}
	f.seen[p.SaleID] = true
	f.payloads = append(f.payloads, p)
	return nil
}

type memAudit struct {
	entries []audit.Entry
}

func (m *memAudit) InsertAuditEntry(_ context.Context, e audit.Entry) error {
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) ListAuditEntries(_ context.Context, limit, offset int) ([]audit.Entry, error) {
	if offset >= len(m.entries) {
		return nil, nil
	}
	return m.entries[offset:min(offset+limit, len(m.entries))], nil
}

type fixture struct {
	router   http.Handler
	audit    *memAudit
	catalog  *fakeCatalog
	queue    *fakeQueue
	metrics  *obs.DomainMetrics
	biscuit  uuid.UUID
	rice     uuid.UUID
	percent  uuid.UUID
	flat     uuid.UUID
	customer uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{biscuit: uuid.New(), rice: uuid.New(), percent: uuid.New(), flat: uuid.New(), customer: uuid.New()}
	eighteen := decimal.NewFromInt(18)
	maxDiscount := decimal.NewFromInt(20)
	perCustomer := int32(1)
	f.catalog = &fakeCatalog{
		products: map[uuid.UUID]catalog.Product{
			f.biscuit: {ID: f.biscuit, Name: "Biscuits", Price: decimal.NewFromInt(100), Active: true, Tax: gst.Profile{
				HSNCode: "1905", GSTRate: &eighteen, CGSTRate: decimal.NewFromInt(9), SGSTRate: decimal.NewFromInt(9), IGSTRate: eighteen,
				Method: gst.ModeExclusive, Selection: gst.SelectionAuto,
			}},
			f.rice: {ID: f.rice, Name: "Basmati 1kg", Price: decimal.NewFromInt(50), Active: true, Tax: gst.Profile{
				HSNCode: "1006", Method: gst.ModeInclusive, Selection: gst.SelectionAuto,
			}},
		},
		offers: []offer.Offer{
			{ID: f.percent, Name: "10% off", Kind: offer.KindPercentage, Value: decimal.NewFromInt(10),
				MinPurchaseAmount: decimal.NewFromInt(100), MaxDiscountAmount: &maxDiscount, Priority: 1, Active: true},
			{ID: f.flat, Code: "FLAT50", Name: "Flat 50", Kind: offer.KindFlatAmount, Value: decimal.NewFromInt(50),
				PerCustomerLimit: &perCustomer, Priority: 2, Active: true},
		},
	}
	f.queue = &fakeQueue{seen: map[string]bool{}}
	f.metrics = obs.NewDomainMetrics("pos", prometheus.NewRegistry())

	svc, err := billing.NewService(billing.ServiceConfig{
		Catalog:     f.catalog,
		Customers:   fakeCustomers{usage: map[uuid.UUID]int{f.flat: 1}},
		Redemptions: f.queue,
		Settings: pricing.Settings{
			Supplier: gst.MustParseState("27"),
			Resolver: gst.NewResolver(gst.DefaultRate),
			Location: ist,
			Currency: "INR",
		},
		Metrics: f.metrics,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, ist) },
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f.audit = &memAudit{}
	f.router = billing.NewRouter(billing.RouterConfig{
		Handler:      &billing.Handler{Svc: svc},
		Health:       health.Handler{},
		Logger:       zerolog.Nop(),
		Idempotency:  common.Idem{R: client, TTL: time.Hour},
		Audit:        &audit.Service{Store: f.audit, Enabled: true},
		MaxBodyBytes: 1 << 20,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s got %s", want, got)
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestQuoteIntraStateWithOffers(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":"1"},{"productId":%q,"quantity":"2"}],"buyerState":"MH","customerId":%q}`,
		f.biscuit, f.rice, f.customer)

	rr := f.do(t, http.MethodPost, "/api/v1/quotes", body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var q pricing.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &q))
	require.Equal(t, "INR", q.Currency)
	require.False(t, q.Jurisdiction.InterState())
	require.Len(t, q.Lines, 2)
	requireDec(t, "118", q.Lines[0].Total)
	requireDec(t, "5", q.Lines[1].Rate)
	requireDec(t, "4.76", q.Lines[1].TaxAmount)
	requireDec(t, "200", q.CartTotal)
	requireDec(t, "195.24", q.Subtotal)
	requireDec(t, "11.38", q.Tax.CGST)
	requireDec(t, "11.38", q.Tax.SGST)
	requireDec(t, "22.76", q.Tax.Total)
	requireDec(t, "20", q.Discount)
	requireDec(t, "198", q.GrandTotal)

	require.Len(t, q.Offers.Selected, 1)
	require.Equal(t, f.percent, q.Offers.Selected[0].OfferID)
	require.Len(t, q.Rejected, 1)
	require.Equal(t, f.flat, q.Rejected[0].OfferID)
	require.Equal(t, offer.ErrPerCustomerLimitReached.Error(), q.Rejected[0].Reason)

	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.QuoteTotal.WithLabelValues("intra_state", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.OfferApplied.WithLabelValues("percentage")))
}

func TestQuoteInterStateAnonymous(t *testing.T) {
	f := newFixture(t)
	f.catalog.offers = f.catalog.offers[:1]
	body := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":"1"}],"buyerState":"KA"}`, f.biscuit)

	rr := f.do(t, http.MethodPost, "/api/v1/quotes", body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var q pricing.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &q))
	require.True(t, q.Tax.InterState)
	requireDec(t, "18", q.Tax.IGST)
	requireDec(t, "0", q.Tax.CGST)
	requireDec(t, "10", q.Discount)
	requireDec(t, "108", q.GrandTotal)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.QuoteTotal.WithLabelValues("inter_state", "ok")))
}

func TestQuoteReturnLineCarriesNegativeTax(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"items":[{"productId":%q,"quantity":"-1"}],"buyerState":"MH"}`, f.biscuit)

	rr := f.do(t, http.MethodPost, "/api/v1/quotes", body, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var q pricing.Quote
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &q))
	require.Len(t, q.Lines, 1)
	requireDec(t, "-100", q.CartTotal)
	requireDec(t, "-9", q.Tax.CGST)
	requireDec(t, "-9", q.Tax.SGST)
	requireDec(t, "-18", q.Tax.Total)
	requireDec(t, "0", q.Discount)
	requireDec(t, "-118", q.GrandTotal)
	require.Empty(t, q.Offers.Selected)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty items", `{"items":[]}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"zero quantity", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":"0"}]}`, f.biscuit), http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown state", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":"1"}],"buyerState":"Atlantis"}`, f.biscuit), http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", `{"items":[],"discount":5}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown product", fmt.Sprintf(`{"items":[{"productId":%q,"quantity":"1"}]}`, uuid.New()), http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/api/v1/quotes", tc.body, nil)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			require.Equal(t, tc.code, errorCode(t, rr))
		})
	}
}

func TestLineTaxEndpoint(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/tax/line", `{"amount":"1180","gstRate":"18","taxCalculationMethod":"inclusive"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res billing.LineTaxResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	requireDec(t, "1000", res.Line.Base)
	requireDec(t, "180", res.Line.Tax)
	requireDec(t, "90", res.Tax.CGST)
	requireDec(t, "90", res.Tax.SGST)
	require.Nil(t, res.HSNFound)

	rr = f.do(t, http.MethodPost, "/api/v1/tax/line", `{"amount":"100","hsnCode":"0402","buyerState":"29"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res = billing.LineTaxResult{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	requireDec(t, "5", res.Rate)
	require.True(t, *res.HSNFound)
	requireDec(t, "5", res.Tax.IGST)
	requireDec(t, "105", res.Line.Total)

	rr = f.do(t, http.MethodPost, "/api/v1/tax/line", `{"amount":"100","gstRate":"101"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHSNEndpoint(t *testing.T) {
	f := newFixture(t)
	f.catalog.hsn = map[string]decimal.Decimal{"30049099": decimal.NewFromInt(12)}

	rr := f.do(t, http.MethodGet, "/api/v1/hsn/1905", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res billing.HSNResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.True(t, res.Found)
	requireDec(t, "18", res.Rate)
	requireDec(t, "9", res.Intra.CGST)

	rr = f.do(t, http.MethodGet, "/api/v1/hsn/30049099", "", nil)
	res = billing.HSNResult{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.True(t, res.Found)
	requireDec(t, "12", res.Rate)

	rr = f.do(t, http.MethodGet, "/api/v1/hsn/99999999", "", nil)
	res = billing.HSNResult{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.False(t, res.Found)
	requireDec(t, "18", res.Rate)

	rr = f.do(t, http.MethodGet, "/api/v1/hsn/biscuit", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRedeemQueuesOncePerSale(t *testing.T) {
	f := newFixture(t)
	body := fmt.Sprintf(`{"saleId":"S-1001","customerId":%q,"offers":[{"offerId":%q,"discount":"20"}]}`, f.customer, f.percent)

	rr := f.do(t, http.MethodPost, "/api/v1/offers/redeem", body, map[string]string{common.IdempotencyHeader: "k-1"})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"status":"queued"`)
	require.Len(t, f.queue.payloads, 1)
	require.False(t, f.queue.payloads[0].RedeemedAt.IsZero())

	rr = f.do(t, http.MethodPost, "/api/v1/offers/redeem", body, map[string]string{common.IdempotencyHeader: "k-1"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "IDEMPOTENT_REPLAY", errorCode(t, rr))

	rr = f.do(t, http.MethodPost, "/api/v1/offers/redeem", body, map[string]string{common.IdempotencyHeader: "k-2"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"already_queued"`)
	require.Len(t, f.queue.payloads, 1)

	rr = f.do(t, http.MethodPost, "/api/v1/offers/redeem", `{"saleId":"S-1002","offers":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminCreateOffer(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/admin/offers",
		`{"name":"Happy hour","kind":"time_based","value":"5","timeStart":"16:00","timeEnd":"18:00","priority":3}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, f.catalog.created, 1)
	created := f.catalog.created[0]
	require.True(t, created.Active)
	require.Equal(t, offer.Clock(16, 0), *created.TimeStart)

	rr = f.do(t, http.MethodPost, "/api/v1/admin/offers", `{"name":"Inactive","kind":"flat_amount","value":"5","active":false}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.False(t, f.catalog.created[1].Active)

	rr = f.do(t, http.MethodPost, "/api/v1/admin/offers", `{"name":"Overnight","kind":"time_based","value":"5","timeStart":"22:00","timeEnd":"02:00"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	f.catalog.createErr = fmt.Errorf("%w: offers_code_key", common.ErrConflict)
	rr = f.do(t, http.MethodPost, "/api/v1/admin/offers", `{"code":"FLAT50","name":"Dup","kind":"flat_amount","value":"5"}`, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestAdminListOffersPaginates(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/v1/admin/offers?page=2&limit=1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Items      []offer.Offer     `json:"items"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, f.flat, body.Items[0].ID)
	require.Equal(t, common.Pagination{Page: 2, PerPage: 1}, body.Pagination)
}

func TestAdminUpdateProductTax(t *testing.T) {
	f := newFixture(t)
	path := fmt.Sprintf("/api/v1/admin/products/%s/tax", f.rice)

	rr := f.do(t, http.MethodPut, path, `{"hsnCode":"1006","cgstRate":"2.5","sgstRate":"2.5","igstRate":"5","taxCalculationMethod":"exclusive","taxSelectionMode":"manual"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, gst.SelectionManual, f.catalog.products[f.rice].Tax.Selection)

	rr = f.do(t, http.MethodPut, path, `{"taxCalculationMethod":"sometimes"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPut, "/api/v1/admin/products/not-a-uuid/tax", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminChangesAreAudited(t *testing.T) {
	f := newFixture(t)
	terminal := map[string]string{obs.TerminalHeader: "T-07"}

	rr := f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/products/%s/tax", f.rice),
		`{"hsnCode":"1006","cgstRate":"2.5","sgstRate":"2.5","igstRate":"5","taxCalculationMethod":"exclusive","taxSelectionMode":"manual"}`, terminal)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = f.do(t, http.MethodPost, "/api/v1/admin/offers", `{"name":"Overnight","kind":"time_based","value":"5","timeStart":"22:00","timeEnd":"02:00"}`, terminal)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	f.do(t, http.MethodGet, "/api/v1/admin/offers", "", terminal)

	require.Len(t, f.audit.entries, 2)
	tax := f.audit.entries[0]
	require.Equal(t, "product.tax.update", tax.Action)
	require.Equal(t, f.rice.String(), tax.ResourceID)
	require.Equal(t, "T-07", tax.TerminalID)
	require.Equal(t, "/api/v1/admin/products/{id}/tax", tax.Route)
	require.Equal(t, http.StatusOK, tax.Status)
	require.Equal(t, "offer.create", f.audit.entries[1].Action)
	require.Equal(t, http.StatusBadRequest, f.audit.entries[1].Status)

	rr = f.do(t, http.MethodGet, "/api/v1/admin/audit?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Items []audit.Entry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "product.tax.update", body.Items[0].Action)
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
