package audit

import (
	"net/http"

	"github.com/musharafmush/pos-sub010/internal/common"
)

// Handler exposes the audit log to administrators.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/admin/audit.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Service.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	page := common.ParsePagination(r, 50, 200)
	entries, err := h.Service.List(r.Context(), page)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit log", nil)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": entries, "pagination": page})
}
