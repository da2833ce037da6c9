package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"poolops-backend/internal/middleware"
	"poolops-backend/internal/models"
	"poolops-backend/internal/services"
	"poolops-backend/pkg/utils"

	"github.com/gorilla/mux"
)

type InvoiceHandler struct {
	Service   *services.InvoiceService
	Scheduler *services.BillingScheduler
}

func NewInvoiceHandler(s *services.InvoiceService, scheduler *services.BillingScheduler) *InvoiceHandler {
	return &InvoiceHandler{Service: s, Scheduler: scheduler}
}

// CreateInvoice creates a new draft invoice, from line items or a quote
func (h *InvoiceHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	invoice, err := h.Service.Create(r.Context(), orgID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, invoice)
}

// GetInvoice retrieves an invoice by ID
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoice, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, invoice)
}

// ListInvoices returns all invoices for the org
func (h *InvoiceHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoices, err := h.Service.List(r.Context(), orgID)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, invoices)
}

// UpdateInvoice edits an invoice; paid and cancelled invoices are immutable
func (h *InvoiceHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.UpdateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.Update(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, resp)
}

// SendInvoice issues a draft invoice
func (h *InvoiceHandler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoice, err := h.Service.Send(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, invoice)
}

// CancelInvoice voids an unpaid invoice
func (h *InvoiceHandler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoice, err := h.Service.Cancel(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, invoice)
}

// DeleteInvoice removes a draft invoice
func (h *InvoiceHandler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.Service.Delete(r.Context(), orgID, mux.Vars(r)["id"]); err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// GenerateMonthly builds one invoice for a plan's billing period
func (h *InvoiceHandler) GenerateMonthly(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.GenerateMonthlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	invoice, err := h.Scheduler.GenerateForPlan(r.Context(), orgID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, invoice)
}

// AutoGenerateMonthly bills every active plan for the previous month
func (h *InvoiceHandler) AutoGenerateMonthly(w http.ResponseWriter, r *http.Request) {
	result, err := h.Scheduler.RunBatch(r.Context(), time.Now().UTC())
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, result)
}
