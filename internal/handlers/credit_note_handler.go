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

type CreditNoteHandler struct {
	Service *services.AdjustmentService
}

func NewCreditNoteHandler(s *services.AdjustmentService) *CreditNoteHandler {
	return &CreditNoteHandler{Service: s}
}

// CreateCreditNote issues a credit note against an invoice
// POST /api/invoices/{id}/credit-notes
func (h *CreditNoteHandler) CreateCreditNote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateCreditNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.Service.CreateCreditNote(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, note)
}

// ApplyCreditNote applies a stored credit note
// POST /api/credit-notes/{id}/apply
func (h *CreditNoteHandler) ApplyCreditNote(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ApplyCreditNoteRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	resp, err := h.Service.ApplyCreditNote(r.Context(), orgID, mux.Vars(r)["id"], req.InvoiceID)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, resp)
}

// ListCreditNotes returns the org's credit notes
// GET /api/credit-notes?unapplied=true
func (h *CreditNoteHandler) ListCreditNotes(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	unappliedOnly := r.URL.Query().Get("unapplied") == "true"

	notes, err := h.Service.ListCreditNotes(r.Context(), orgID, unappliedOnly)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, notes)
}
