package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"poolops-backend/internal/auth"
	"poolops-backend/internal/cache"
	"poolops-backend/internal/config"
	"poolops-backend/internal/database"
	"poolops-backend/internal/db"
	"poolops-backend/internal/handlers"
	"poolops-backend/internal/health"
	h "poolops-backend/internal/http"
	"poolops-backend/internal/middleware"
	"poolops-backend/internal/monitoring"
	"poolops-backend/internal/repositories"
	"poolops-backend/internal/services"
)

// startAutoBillingLoop runs the monthly auto-billing batch once per day at the
// configured hour. The batch itself is idempotent, so a restart mid-day at
// worst re-runs it and skips every plan as already billed.
func startAutoBillingLoop(scheduler *services.BillingScheduler, runHour int) {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		var lastRun time.Time
		for now := range ticker.C {
			now = now.UTC()
			if now.Hour() != runHour {
				continue
			}
			if lastRun.Year() == now.Year() && lastRun.YearDay() == now.YearDay() {
				continue
			}
			lastRun = now

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			result, err := scheduler.RunBatch(ctx, now)
			cancel()
			if err != nil {
				log.Printf("[AutoBilling] Batch run failed: %v", err)
				continue
			}
			log.Printf("[AutoBilling] Batch complete: %d generated, %d skipped, %d errors",
				len(result.Generated), len(result.Skipped), len(result.Errors))
		}
	}()
}

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	// Connect to PostgreSQL
	pool := db.Connect(cfg)
	defer pool.Close()

	// Run database migrations
	// This automatically creates all required tables on startup
	log.Println("Running database migrations...")
	migrator := database.NewMigrator(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrator.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Printf("[Redis] Cache unavailable: %v (webhook dedup will use database only)", err)
	} else {
		log.Println("[Redis] Cache connected successfully")
	}

	// Initialize health checker
	healthChecker := health.NewHealthChecker(pool)

	// Start monitoring dashboard server in background
	go monitoring.NewMonitoringServer(pool, 9090).Start()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg)

	// Initialize repositories
	clientRepo := repositories.NewClientRepository(pool)
	issueRepo := repositories.NewIssueRepository(pool)
	quoteRepo := repositories.NewQuoteRepository(pool)
	invoiceRepo := repositories.NewInvoiceRepository(pool)
	paymentRepo := repositories.NewPaymentRepository(pool)
	refundRepo := repositories.NewRefundRepository(pool)
	creditNoteRepo := repositories.NewCreditNoteRepository(pool)
	servicePlanRepo := repositories.NewServicePlanRepository(pool)
	visitRepo := repositories.NewVisitRepository(pool)
	receiptRepo := repositories.NewReceiptRepository(pool)
	metricsRepo := repositories.NewMetricsRepository(pool)

	// Initialize services
	receiptService := services.NewReceiptService(receiptRepo, cfg.R2, cfg.Billing.OrgName)
	quoteService := services.NewQuoteService(quoteRepo, issueRepo, clientRepo, cfg.Billing.Currency)
	invoiceService := services.NewInvoiceService(invoiceRepo, quoteRepo, clientRepo, cfg.Billing.Currency)
	paymentService := services.NewPaymentService(
		paymentRepo,
		invoiceRepo,
		receiptService,
		cfg.Gateway.Provider,
		cfg.Gateway.KeyID,
		cfg.Gateway.KeySecret,
		cfg.Gateway.WebhookSecret,
	)
	adjustmentService := services.NewAdjustmentService(creditNoteRepo, refundRepo, paymentRepo, invoiceRepo, paymentService)
	billingScheduler := services.NewBillingScheduler(servicePlanRepo, visitRepo, invoiceRepo, cfg.Billing.DueDays)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)
	corsMiddleware := middleware.NewCORS(cfg)
	apiLoggingMiddleware := middleware.NewAPILoggingMiddleware(metricsRepo)
	defer apiLoggingMiddleware.Close()

	// Initialize handlers
	quoteHandler := handlers.NewQuoteHandler(quoteService)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService, billingScheduler)
	paymentHandler := handlers.NewPaymentHandler(paymentService, adjustmentService)
	creditNoteHandler := handlers.NewCreditNoteHandler(adjustmentService)
	billingHandler := handlers.NewBillingHandler(invoiceService)
	webhookHandler := handlers.NewWebhookHandler(paymentService)
	healthHandler := handlers.NewHealthHandler(healthChecker)

	router := h.NewRouter(
		quoteHandler,
		invoiceHandler,
		paymentHandler,
		creditNoteHandler,
		billingHandler,
		webhookHandler,
		healthHandler,
		authMiddleware,
	)

	// Wrap with panic recovery, CORS and API logging middleware; the
	// metrics middleware lives on the router itself
	handler := middleware.PanicRecovery(
		corsMiddleware(
			apiLoggingMiddleware.Handler(router),
		),
	)

	// Kick off the daily auto-billing loop
	startAutoBillingLoop(billingScheduler, cfg.Billing.AutoRunHour)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server running on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
