package handlers

import (
	"encoding/json"
	"net/http"

	"poolops-backend/internal/middleware"
	"poolops-backend/internal/models"
	"poolops-backend/internal/services"
	"poolops-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type QuoteHandler struct {
	Service *services.QuoteService
}

func NewQuoteHandler(s *services.QuoteService) *QuoteHandler {
	return &QuoteHandler{Service: s}
}

// CreateQuote creates a new quote
func (h *QuoteHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := h.Service.Create(r.Context(), orgID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, quote)
}

// GetQuote retrieves a quote by ID
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	quote, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, quote)
}

// ListQuotes returns all quotes for the org
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	quotes, err := h.Service.List(r.Context(), orgID)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, quotes)
}

// UpdateQuote edits a pending quote's items or notes
func (h *QuoteHandler) UpdateQuote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.UpdateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := h.Service.Update(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, quote)
}

// ApproveQuote marks a pending quote approved
func (h *QuoteHandler) ApproveQuote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	quote, err := h.Service.Approve(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, quote)
}

// RejectQuote marks a pending quote rejected
func (h *QuoteHandler) RejectQuote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.RejectQuoteRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	quote, err := h.Service.Reject(r.Context(), orgID, mux.Vars(r)["id"], req.Reason)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, quote)
}
