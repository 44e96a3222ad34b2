package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/musharafmush/pos-sub010/internal/obs"
)

type stubStore struct {
	entries []Entry
	limit   int
	offset  int
	err     error
}

func (s *stubStore) InsertAuditEntry(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubStore) ListAuditEntries(_ context.Context, limit, offset int) ([]Entry, error) {
	s.limit, s.offset = limit, offset
	return s.entries, nil
}

func TestServiceRecord(t *testing.T) {
	store := &stubStore{}
	svc := &Service{Store: store, Enabled: true}

	req := httptest.NewRequest(http.MethodPost, "https://pos.test/api/v1/admin/offers?dryRun=false", nil)
	req.Header.Set("User-Agent", "till/2.1")
	req.Header.Set("X-Request-ID", "req-123")
	req.Header.Set(obs.TerminalHeader, "T-07")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/admin/offers"))

	require.NoError(t, svc.Record(req.Context(), "", "", "", req, http.StatusCreated, nil))
	require.Len(t, store.entries, 1)
	e := store.entries[0]
	require.Equal(t, "POST /api/v1/admin/offers", e.Action)
	require.Equal(t, "admin.offers", e.ResourceType)
	require.Equal(t, "T-07", e.TerminalID)
	require.Equal(t, "10.0.0.2", e.IP)
	require.Equal(t, "req-123", e.RequestID)
	require.Equal(t, http.StatusCreated, e.Status)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(e.Metadata, &meta))
	require.Equal(t, "dryRun=false", meta["query"])
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &stubStore{}
	svc := &Service{Store: store}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), "", "", "", req, http.StatusOK, nil))
	require.Empty(t, store.entries)

	var nilSvc *Service
	require.NoError(t, nilSvc.Record(req.Context(), "", "", "", req, http.StatusOK, nil))
}

func TestMiddlewareRecordsStatusAndResource(t *testing.T) {
	store := &stubStore{}
	var recordErr error
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}, OnError: func(err error) { recordErr = err }}

	r := chi.NewRouter()
	r.With(rec.Middleware(HTTPConfig{
		Action:          "product.tax.update",
		ResourceType:    "product",
		ResourceIDParam: "id",
		MetadataFunc: func(_ *http.Request, status int) map[string]any {
			return map[string]any{"ok": status < 400}
		},
	})).Put("/products/{id}/tax", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/products/abc/tax", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.NoError(t, recordErr)
	require.Len(t, store.entries, 1)
	require.Equal(t, "product.tax.update", store.entries[0].Action)
	require.Equal(t, "abc", store.entries[0].ResourceID)
	require.Equal(t, http.StatusBadRequest, store.entries[0].Status)
	require.JSONEq(t, `{"ok":false}`, string(store.entries[0].Metadata))

	store.err = errors.New("db down")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/products/abc/tax", nil))
	require.EqualError(t, recordErr, "db down")
}

func TestMiddlewareRecordsAfterClientDisconnect(t *testing.T) {
	store := &stubStore{}
	var recordErr error
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}, OnError: func(err error) { recordErr = err }}

	var cancel context.CancelFunc
	withCancel := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var ctx context.Context
			ctx, cancel = context.WithCancel(req.Context())
			defer cancel()
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}

	r := chi.NewRouter()
	r.Use(withCancel)
	r.With(rec.Middleware(HTTPConfig{Action: "offer.create", ResourceType: "offer"})).
		Post("/offers", func(w http.ResponseWriter, _ *http.Request) {
			cancel()
			w.WriteHeader(http.StatusCreated)
		})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/offers", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, recordErr)
	require.Len(t, store.entries, 1)
	require.Equal(t, "offer.create", store.entries[0].Action)
	require.Equal(t, http.StatusCreated, store.entries[0].Status)
}

func TestHandlerList(t *testing.T) {
	store := &stubStore{entries: []Entry{{ID: 1, Action: "offer.create", Method: http.MethodPost}}}
	h := Handler{Service: &Service{Store: store, Enabled: true}}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit?page=3&limit=25", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 25, store.limit)
	require.Equal(t, 50, store.offset)

	var body struct {
		Items []Entry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "offer.create", body.Items[0].Action)

	rr = httptest.NewRecorder()
	Handler{}.List(rr, httptest.NewRequest(http.MethodGet, "/admin/audit", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
