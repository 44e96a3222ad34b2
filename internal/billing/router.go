package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/musharafmush/pos-sub010/internal/audit"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/health"
	"github.com/musharafmush/pos-sub010/internal/obs"
	"github.com/musharafmush/pos-sub010/internal/security"
)

// RouterConfig wires the HTTP surface of the billing API.
type RouterConfig struct {
	Handler        *Handler
	Health         health.Handler
	Logger         zerolog.Logger
	HTTPMetrics    *obs.HTTPMetrics
	MetricsHandler http.Handler
	Idempotency    common.Idem
	Audit          *audit.Service
	RateLimit      func(http.Handler) http.Handler
	CORSOrigins    []string
	MaxBodyBytes   int64
	Tracing        bool
	ServiceName    string
}

// NewRouter builds the chi router for the billing API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.HTTPObs{Metrics: cfg.HTTPMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id", obs.TerminalHeader, common.IdempotencyHeader},
		ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	h := cfg.Handler
	r.Route("/api/v1", func(v chi.Router) {
		if cfg.RateLimit != nil {
			v.Use(cfg.RateLimit)
		}
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

		v.Post("/quotes", h.Quote)
		v.Post("/tax/line", h.LineTax)
		v.Get("/hsn/{code}", h.HSN)
		v.With(cfg.Idempotency.Middleware).Post("/offers/redeem", h.Redeem)

		recorder := audit.HTTPRecorder{
			Service: cfg.Audit,
			OnError: func(err error) { cfg.Logger.Error().Err(err).Msg("record audit entry") },
		}
		v.Route("/admin", func(admin chi.Router) {
			admin.Get("/offers", h.ListOffers)
			admin.With(
				cfg.Idempotency.Middleware,
				recorder.Middleware(audit.HTTPConfig{Action: "offer.create", ResourceType: "offer"}),
			).Post("/offers", h.CreateOffer)
			admin.With(
				recorder.Middleware(audit.HTTPConfig{Action: "product.tax.update", ResourceType: "product", ResourceIDParam: "id"}),
			).Put("/products/{id}/tax", h.UpdateProductTax)
			if cfg.Audit != nil {
				admin.Get("/audit", audit.Handler{Service: cfg.Audit}.List)
			}
		})
	})

	if !cfg.Tracing {
		return r
	}
	name := cfg.ServiceName
	if name == "" {
		name = "pos-billing"
	}
	return obs.Traced(r, name)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
