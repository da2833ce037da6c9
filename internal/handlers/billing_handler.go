package handlers

import (
	"encoding/json"
	"net/http"

	"poolops-backend/internal/cache"
	"poolops-backend/internal/middleware"
	"poolops-backend/internal/services"
	"poolops-backend/pkg/utils"
)

type BillingHandler struct {
	Service *services.InvoiceService
}

func NewBillingHandler(s *services.InvoiceService) *BillingHandler {
	return &BillingHandler{Service: s}
}

// GetSummary returns the org billing dashboard aggregate
// GET /api/billing/summary
func (h *BillingHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if data, ok := cache.GetCachedSummary(r.Context(), orgID); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.Write(data)
		return
	}

	summary, err := h.Service.Summary(r.Context(), orgID)
	if err != nil {
		utils.Error(w, err)
		return
	}

	if data, err := json.Marshal(summary); err == nil {
		cache.CacheSummary(r.Context(), orgID, data)
	}

	utils.JSON(w, http.StatusOK, summary)
}
