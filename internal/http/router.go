package http

import (
	"net/http"

	"poolops-backend/internal/handlers"
	"poolops-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	quoteHandler *handlers.QuoteHandler,
	invoiceHandler *handlers.InvoiceHandler,
	paymentHandler *handlers.PaymentHandler,
	creditNoteHandler *handlers.CreditNoteHandler,
	billingHandler *handlers.BillingHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()

	// Registered on the router so the metrics path label resolves to the
	// matched route template instead of raw URLs full of entity UUIDs.
	r.Use(middleware.MetricsMiddleware)

	// Public webhook route - verified by signature, not bearer token
	r.HandleFunc("/webhooks/payment-gateway", webhookHandler.HandlePaymentWebhook).Methods("POST")

	// Protected API routes - Quotes
	quotesAPI := r.PathPrefix("/api/quotes").Subrouter()
	quotesAPI.Use(authMiddleware.Authenticate)
	quotesAPI.HandleFunc("", quoteHandler.CreateQuote).Methods("POST")
	quotesAPI.HandleFunc("", quoteHandler.ListQuotes).Methods("GET")
	quotesAPI.HandleFunc("/{id}", quoteHandler.GetQuote).Methods("GET")
	quotesAPI.HandleFunc("/{id}", quoteHandler.UpdateQuote).Methods("PATCH")
	quotesAPI.HandleFunc("/{id}/approve", quoteHandler.ApproveQuote).Methods("POST")
	quotesAPI.HandleFunc("/{id}/reject", quoteHandler.RejectQuote).Methods("POST")

	// Protected API routes - Invoices
	invoicesAPI := r.PathPrefix("/api/invoices").Subrouter()
	invoicesAPI.Use(authMiddleware.Authenticate)
	invoicesAPI.HandleFunc("", invoiceHandler.CreateInvoice).Methods("POST")
	invoicesAPI.HandleFunc("", invoiceHandler.ListInvoices).Methods("GET")
	invoicesAPI.HandleFunc("/generate-monthly", invoiceHandler.GenerateMonthly).Methods("POST")
	invoicesAPI.HandleFunc("/auto-generate-monthly", authMiddleware.RequireRole("admin")(http.HandlerFunc(invoiceHandler.AutoGenerateMonthly)).ServeHTTP).Methods("POST")
	invoicesAPI.HandleFunc("/{id}", invoiceHandler.GetInvoice).Methods("GET")
	invoicesAPI.HandleFunc("/{id}", invoiceHandler.UpdateInvoice).Methods("PATCH")
	invoicesAPI.HandleFunc("/{id}", invoiceHandler.DeleteInvoice).Methods("DELETE")
	invoicesAPI.HandleFunc("/{id}/send", invoiceHandler.SendInvoice).Methods("POST")
	invoicesAPI.HandleFunc("/{id}/cancel", invoiceHandler.CancelInvoice).Methods("POST")
	invoicesAPI.HandleFunc("/{id}/payments", paymentHandler.ListInvoicePayments).Methods("GET")
	invoicesAPI.HandleFunc("/{id}/credit-notes", creditNoteHandler.CreateCreditNote).Methods("POST")

	// Protected API routes - Payments
	paymentsAPI := r.PathPrefix("/api/payments").Subrouter()
	paymentsAPI.Use(authMiddleware.Authenticate)
	paymentsAPI.HandleFunc("", paymentHandler.RecordPayment).Methods("POST")
	paymentsAPI.HandleFunc("/{id}", paymentHandler.GetPayment).Methods("GET")
	paymentsAPI.HandleFunc("/{id}/refund", paymentHandler.RefundPayment).Methods("POST")

	// Protected API routes - Credit Notes
	creditNotesAPI := r.PathPrefix("/api/credit-notes").Subrouter()
	creditNotesAPI.Use(authMiddleware.Authenticate)
	creditNotesAPI.HandleFunc("", creditNoteHandler.ListCreditNotes).Methods("GET")
	creditNotesAPI.HandleFunc("/{id}/apply", creditNoteHandler.ApplyCreditNote).Methods("POST")

	// Protected API routes - Receipts
	receiptsAPI := r.PathPrefix("/api/receipts").Subrouter()
	receiptsAPI.Use(authMiddleware.Authenticate)
	receiptsAPI.HandleFunc("/missing", paymentHandler.ListMissingReceipts).Methods("GET")

	// Protected API routes - Billing dashboard
	billingAPI := r.PathPrefix("/api/billing").Subrouter()
	billingAPI.Use(authMiddleware.Authenticate)
	billingAPI.HandleFunc("/summary", billingHandler.GetSummary).Methods("GET")

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
