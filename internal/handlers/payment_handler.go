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

type PaymentHandler struct {
	Service     *services.PaymentService
	Adjustments *services.AdjustmentService
}

func NewPaymentHandler(s *services.PaymentService, adjustments *services.AdjustmentService) *PaymentHandler {
	return &PaymentHandler{Service: s, Adjustments: adjustments}
}

// RecordPayment records a manual payment against an invoice
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payment, err := h.Service.RecordManualPayment(r.Context(), orgID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, payment)
}

// GetPayment retrieves a payment by ID
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payment, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, payment)
}

// ListInvoicePayments returns the payments recorded against an invoice
func (h *PaymentHandler) ListInvoicePayments(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	payments, err := h.Service.ListByInvoice(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, payments)
}

// RefundPayment reverses part or all of a completed payment
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.RefundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	refund, err := h.Adjustments.RefundPayment(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusCreated, refund)
}

// ListMissingReceipts returns completed payments without a receipt
func (h *PaymentHandler) ListMissingReceipts(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.GetOrgIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	missing, err := h.Service.MissingReceipts(r.Context(), orgID)
	if err != nil {
		utils.Error(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, missing)
}
