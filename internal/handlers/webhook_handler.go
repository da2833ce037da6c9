package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"poolops-backend/internal/models"
	"poolops-backend/internal/services"
	"poolops-backend/pkg/utils"
)

type WebhookHandler struct {
	Service *services.PaymentService
}

func NewWebhookHandler(s *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{Service: s}
}

// HandlePaymentWebhook processes payment gateway events
// POST /webhooks/payment-gateway
//
// Duplicates are acknowledged with 200 so the gateway stops retrying; a
// payment for an unknown invoice is a 404, which the gateway retries
// until the invoice exists or delivery gives up.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Webhook] Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Gateway-Signature")
	if !h.Service.VerifyWebhookSignature(body, signature) {
		log.Printf("[Webhook] Invalid signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event models.GatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("[Webhook] Failed to parse event: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	log.Printf("[Webhook] Received event: %s ref=%s", event.Event, event.Data.Reference)

	payment, duplicate, err := h.Service.ApplyGatewayEvent(r.Context(), &event)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.Error(w, err)
			return
		}
		if errors.Is(err, models.ErrValidation) {
			utils.Error(w, err)
			return
		}
		log.Printf("[Webhook] Processing error: %v", err)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	if duplicate {
		utils.JSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"payment_id": payment.ID,
	})
}
