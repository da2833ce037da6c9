package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"poolops-backend/internal/metrics"
	"poolops-backend/internal/models"
	"poolops-backend/internal/money"
	"poolops-backend/internal/timeutil"

	"github.com/google/uuid"
)

// ServicePlanStore reads recurring plans owned by the scheduling subsystem.
type ServicePlanStore interface {
	GetByID(ctx context.Context, orgID, id string) (*models.ServicePlan, error)
	ListActive(ctx context.Context) ([]*models.ServicePlan, error)
}

// VisitStore reads completed visits for a plan within a billing period.
type VisitStore interface {
	ListCompletedInPeriod(ctx context.Context, orgID, planID string, periodStart, periodEnd time.Time) ([]*models.Visit, error)
}

// BillingScheduler turns completed visits into monthly invoices. The
// (plan, period_start) pair deduplicates runs: generating twice for the
// same period is a no-op for the second caller.
type BillingScheduler struct {
	plans    ServicePlanStore
	visits   VisitStore
	invoices InvoiceStore
	dueDays  int
}

func NewBillingScheduler(plans ServicePlanStore, visits VisitStore, invoices InvoiceStore, dueDays int) *BillingScheduler {
	if dueDays <= 0 {
		dueDays = 14
	}
	return &BillingScheduler{plans: plans, visits: visits, invoices: invoices, dueDays: dueDays}
}

// GenerateForPlan builds one invoice for a plan's billing period: one line
// item per completed visit at the plan price. The invoice is issued (sent)
// immediately, never left in draft.
func (s *BillingScheduler) GenerateForPlan(ctx context.Context, orgID string, req *models.GenerateMonthlyRequest) (*models.Invoice, error) {
	if req.ServicePlanID == "" {
		return nil, fmt.Errorf("%w: service_plan_id is required", models.ErrValidation)
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, fmt.Errorf("%w: period_end must be after period_start", models.ErrValidation)
	}

	plan, err := s.plans.GetByID(ctx, orgID, req.ServicePlanID)
	if err != nil {
		return nil, err
	}

	existing, err := s.invoices.FindByPlanPeriod(ctx, orgID, plan.ID, req.PeriodStart)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: invoice %s covers this period", models.ErrDuplicatePeriod, existing.InvoiceNumber)
	}

	visits, err := s.visits.ListCompletedInPeriod(ctx, orgID, plan.ID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return nil, models.ErrNoCompletedVisits
	}

	items := make([]models.LineItem, 0, len(visits))
	for _, v := range visits {
		label := "Pool service visit"
		if v.CompletedAt != nil {
			label = fmt.Sprintf("Pool service visit %s", v.CompletedAt.UTC().Format(timeutil.DateLayout))
		}
		items = append(items, models.LineItem{
			Label:          label,
			Qty:            1,
			UnitPriceCents: plan.PriceCents,
			TaxPct:         plan.TaxPct,
		})
	}

	totals, err := money.ComputeTotals(items)
	if err != nil {
		return nil, err
	}

	issuedAt := time.Now().UTC()
	if req.BillingDate != nil {
		issuedAt = req.BillingDate.UTC()
	}
	dueAt := issuedAt.AddDate(0, 0, s.dueDays)

	currency := plan.Currency
	invoice := &models.Invoice{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		ClientID:      plan.ClientID,
		PoolID:        &plan.PoolID,
		Status:        models.InvoiceStatusSent,
		Currency:      currency,
		Items:         items,
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		IssuedAt:      &issuedAt,
		DueDate:       &dueAt,
		Metadata: models.InvoiceMetadata{
			ServicePlanID: plan.ID,
			PeriodStart:   req.PeriodStart.UTC().Format(timeutil.DateLayout),
			PeriodEnd:     req.PeriodEnd.UTC().Format(timeutil.DateLayout),
			VisitCount:    len(visits),
			AutoGenerated: true,
		},
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}
	metrics.InvoicesGenerated.Inc()
	return invoice, nil
}

// RunBatch bills every active plan for the previous calendar month. Plan
// failures are collected, not propagated; one broken plan must not starve
// the rest of the batch.
func (s *BillingScheduler) RunBatch(ctx context.Context, now time.Time) (*models.BatchResult, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}

	periodStart, periodEnd := timeutil.PreviousMonth(now)
	result := &models.BatchResult{
		Generated: []models.BatchGenerated{},
		Skipped:   []models.BatchSkipped{},
		Errors:    []models.BatchError{},
	}

	for _, plan := range plans {
		invoice, err := s.GenerateForPlan(ctx, plan.OrgID, &models.GenerateMonthlyRequest{
			ServicePlanID: plan.ID,
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
		})
		switch {
		case err == nil:
			result.Generated = append(result.Generated, models.BatchGenerated{
				ServicePlanID: plan.ID,
				InvoiceID:     invoice.ID,
				InvoiceNumber: invoice.InvoiceNumber,
				TotalCents:    invoice.TotalCents,
				VisitCount:    invoice.Metadata.VisitCount,
			})
		case errors.Is(err, models.ErrDuplicatePeriod):
			result.Skipped = append(result.Skipped, models.BatchSkipped{
				ServicePlanID: plan.ID,
				Reason:        "already billed",
			})
		case errors.Is(err, models.ErrNoCompletedVisits):
			result.Skipped = append(result.Skipped, models.BatchSkipped{
				ServicePlanID: plan.ID,
				Reason:        "no completed visits",
			})
		default:
			log.Printf("[BillingScheduler] plan %s: %v", plan.ID, err)
			result.Errors = append(result.Errors, models.BatchError{
				ServicePlanID: plan.ID,
				Error:         err.Error(),
			})
		}
	}

	log.Printf("[BillingScheduler] batch done: %d generated, %d skipped, %d errors",
		len(result.Generated), len(result.Skipped), len(result.Errors))
	return result, nil
}
