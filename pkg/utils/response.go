package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"poolops-backend/internal/models"
)

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes a JSON error body with the status implied by the error's
// sentinel. Unknown errors become 500 with a generic message so internals
// never leak to clients.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrAlreadyApplied),
		errors.Is(err, models.ErrAlreadyRefunded),
		errors.Is(err, models.ErrDuplicatePeriod):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, models.ErrExceedsBalance),
		errors.Is(err, models.ErrExceedsPaymentAmount),
		errors.Is(err, models.ErrNoCompletedVisits):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	}

	JSON(w, status, map[string]string{"error": message})
}
