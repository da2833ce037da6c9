package models

import "time"

type ServicePlanStatus string

const (
	ServicePlanStatusActive ServicePlanStatus = "active"
	ServicePlanStatusPaused ServicePlanStatus = "paused"
)

// ServicePlan is the billing-relevant subset of a recurring service plan.
// Plans are owned by the scheduling subsystem; this engine only reads them.
type ServicePlan struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"org_id"`
	PoolID     string            `json:"pool_id"`
	ClientID   string            `json:"client_id"`
	PriceCents int64             `json:"price_cents"`
	TaxPct     float64           `json:"tax_pct"`
	Currency   string            `json:"currency"`
	Status     ServicePlanStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Visit is the billing-relevant subset of a completed field visit, also
// owned by the scheduling subsystem.
type Visit struct {
	ID            string     `json:"id"`
	OrgID         string     `json:"org_id"`
	ServicePlanID string     `json:"service_plan_id"`
	PoolID        string     `json:"pool_id"`
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
