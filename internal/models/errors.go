package models

import "errors"

// Billing error taxonomy. Handlers map these to HTTP status codes with
// errors.Is; services wrap them with context via fmt.Errorf("%w: ...").
var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrExceedsBalance       = errors.New("amount exceeds outstanding balance")
	ErrExceedsPaymentAmount = errors.New("amount exceeds payment amount")
	ErrAlreadyApplied       = errors.New("credit note already applied")
	ErrAlreadyRefunded      = errors.New("payment already refunded")
	ErrDuplicatePeriod      = errors.New("invoice already exists for billing period")
	ErrNoCompletedVisits    = errors.New("no completed visits in billing period")
)
