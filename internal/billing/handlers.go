package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/musharafmush/pos-sub010/internal/catalog"
	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/jobs"
	"github.com/musharafmush/pos-sub010/internal/offer"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Handler exposes billing endpoints.
type Handler struct {
	Svc *Service
}

// Quote handles POST /api/v1/quotes.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, q)
}

// LineTax handles POST /api/v1/tax/line.
func (h *Handler) LineTax(w http.ResponseWriter, r *http.Request) {
	var req LineTaxRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Svc.LineTax(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// HSN handles GET /api/v1/hsn/{code}.
func (h *Handler) HSN(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := common.Validate.Var(code, "required,max=8,numeric"); err != nil {
		common.WriteError(w, common.Invalid("invalid HSN code", nil, map[string]string{"code": "must be up to 8 digits"}))
		return
	}
	res, err := h.Svc.HSNRate(r.Context(), code)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// Redeem handles POST /api/v1/offers/redeem.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var payload jobs.RedeemPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	queued, err := h.Svc.Redeem(r.Context(), payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	status := "queued"
	if !queued {
		status = "already_queued"
	}
	common.JSON(w, http.StatusAccepted, map[string]string{"saleId": payload.SaleID, "status": status})
}

// CreateOffer handles POST /api/v1/admin/offers.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Svc.CreateOffer(r.Context(), req.toOffer())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, created)
}

// ListOffers handles GET /api/v1/admin/offers.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, defaultPerPage, maxPerPage)
	offers, err := h.Svc.ListOffers(r.Context(), page)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if offers == nil {
		offers = []offer.Offer{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": offers, "pagination": page})
}

// UpdateProductTax handles PUT /api/v1/admin/products/{id}/tax.
func (h *Handler) UpdateProductTax(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.Invalid("invalid product id", nil, map[string]string{"id": "must be a UUID"}))
		return
	}
	var update catalog.TaxUpdate
	if err := common.DecodeJSON(r, &update); err != nil {
		common.WriteError(w, err)
		return
	}
	product, err := h.Svc.UpdateProductTax(r.Context(), id, update)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, product)
}
