package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"poolops-backend/internal/models"
	"poolops-backend/internal/money"

	"github.com/google/uuid"
)

// Issue statuses driven by the quote lifecycle. The issue records live in
// the field-service subsystem; billing only flips their status.
const (
	IssueStatusOpen      = "open"
	IssueStatusQuoted    = "quoted"
	IssueStatusScheduled = "scheduled"
)

// QuoteStore is the persistence surface QuoteService needs.
type QuoteStore interface {
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, orgID, id string) (*models.Quote, error)
	List(ctx context.Context, orgID string) ([]*models.Quote, error)
	Update(ctx context.Context, quote *models.Quote) error
}

// IssueStore flips issue statuses in the field-service subsystem.
type IssueStore interface {
	SetStatus(ctx context.Context, orgID, issueID, status string) error
}

// PoolStore proves pools and clients belong to the caller's org.
type PoolStore interface {
	Exists(ctx context.Context, orgID, clientID string) (bool, error)
	PoolExists(ctx context.Context, orgID, poolID string) (bool, error)
}

type QuoteService struct {
	quotes   QuoteStore
	issues   IssueStore
	pools    PoolStore
	currency string
}

func NewQuoteService(quotes QuoteStore, issues IssueStore, pools PoolStore, currency string) *QuoteService {
	return &QuoteService{
		quotes:   quotes,
		issues:   issues,
		pools:    pools,
		currency: currency,
	}
}

// Create prices a new quote. Linked issues move to "quoted"; that flip is
// best-effort and never fails the quote itself.
func (s *QuoteService) Create(ctx context.Context, orgID string, req *models.CreateQuoteRequest) (*models.Quote, error) {
	if req.PoolID == "" {
		return nil, fmt.Errorf("%w: pool_id is required", models.ErrValidation)
	}
	if req.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", models.ErrValidation)
	}

	ok, err := s.pools.PoolExists(ctx, orgID, req.PoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pool: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: pool %s", models.ErrNotFound, req.PoolID)
	}

	totals, err := money.ComputeTotals(req.Items)
	if err != nil {
		return nil, err
	}

	quote := &models.Quote{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		PoolID:        req.PoolID,
		ClientID:      req.ClientID,
		IssueID:       req.IssueID,
		Currency:      s.currency,
		Items:         req.Items,
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		Status:        models.QuoteStatusPending,
		Notes:         req.Notes,
	}

	if err := s.quotes.Create(ctx, quote); err != nil {
		return nil, err
	}

	if quote.IssueID != nil {
		if err := s.issues.SetStatus(ctx, orgID, *quote.IssueID, IssueStatusQuoted); err != nil {
			log.Printf("[Quote] Failed to mark issue %s quoted: %v", *quote.IssueID, err)
		}
	}

	return quote, nil
}

// Update edits a pending quote, recomputing totals when items change.
func (s *QuoteService) Update(ctx context.Context, orgID, id string, req *models.UpdateQuoteRequest) (*models.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusPending {
		return nil, fmt.Errorf("%w: quote is %s, only pending quotes can be edited", models.ErrInvalidState, quote.Status)
	}

	if req.Items != nil {
		totals, err := money.ComputeTotals(*req.Items)
		if err != nil {
			return nil, err
		}
		quote.Items = *req.Items
		quote.SubtotalCents = totals.SubtotalCents
		quote.TaxCents = totals.TaxCents
		quote.TotalCents = totals.TotalCents
	}
	if req.Notes != nil {
		quote.Notes = *req.Notes
	}

	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// Approve marks a pending quote approved and schedules its linked issue.
func (s *QuoteService) Approve(ctx context.Context, orgID, id string) (*models.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusPending {
		return nil, fmt.Errorf("%w: quote is %s, only pending quotes can be approved", models.ErrInvalidState, quote.Status)
	}

	now := time.Now().UTC()
	quote.Status = models.QuoteStatusApproved
	quote.ApprovedAt = &now

	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, err
	}

	if quote.IssueID != nil {
		if err := s.issues.SetStatus(ctx, orgID, *quote.IssueID, IssueStatusScheduled); err != nil {
			log.Printf("[Quote] Failed to mark issue %s scheduled: %v", *quote.IssueID, err)
		}
	}

	return quote, nil
}

// Reject records the rejection reason and reopens the linked issue.
func (s *QuoteService) Reject(ctx context.Context, orgID, id, reason string) (*models.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusPending {
		return nil, fmt.Errorf("%w: quote is %s, only pending quotes can be rejected", models.ErrInvalidState, quote.Status)
	}

	now := time.Now().UTC()
	quote.Status = models.QuoteStatusRejected
	quote.RejectedAt = &now
	quote.RejectionReason = reason

	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, err
	}

	if quote.IssueID != nil {
		if err := s.issues.SetStatus(ctx, orgID, *quote.IssueID, IssueStatusOpen); err != nil {
			log.Printf("[Quote] Failed to reopen issue %s: %v", *quote.IssueID, err)
		}
	}

	return quote, nil
}

func (s *QuoteService) Get(ctx context.Context, orgID, id string) (*models.Quote, error) {
	return s.quotes.GetByID(ctx, orgID, id)
}

func (s *QuoteService) List(ctx context.Context, orgID string) ([]*models.Quote, error) {
	return s.quotes.List(ctx, orgID)
}
