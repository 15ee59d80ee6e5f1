package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// lifecycleStatus maps coordinator errors onto HTTP statuses. Unknown errors
// fall through to 500.
func lifecycleStatus(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrDeadlineExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrNotEligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrPaymentAuthorizationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, lifecycle.ErrPaymentOperationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	status := lifecycleStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	http.Error(w, msg, status)
}
