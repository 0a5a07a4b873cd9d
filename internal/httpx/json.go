// Package httpx is the HTTP boundary: request parsing, the error envelope,
// and the streaming watch endpoints. Domain logic stays in the services it
// delegates to.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/you/go-farescout/internal/booking"
	"github.com/you/go-farescout/internal/models"
)

// ErrorResponse is the envelope every non-2xx answer uses. Details is only
// populated when a search fails with per-provider errors.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details []models.ProviderError `json:"details,omitempty"`
}

// WriteJSON writes v with the given status. An encode failure means the
// client went away after the status was committed; nothing useful is left
// to do with it.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope with a machine-readable code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondError maps domain errors onto statuses. Anything unrecognized is
// treated as a caller mistake; services return typed errors for everything
// that is not.
func respondError(w http.ResponseWriter, err error) {
	var allFailed *models.AllProvidersFailedError
	switch {
	case errors.As(err, &allFailed):
		WriteJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   allFailed.Error(),
			Code:    "ALL_PROVIDERS_FAILED",
			Details: allFailed.Errors,
		})
	case errors.Is(err, models.ErrQuotaExceeded):
		WriteError(w, http.StatusTooManyRequests, "QUOTA_EXCEEDED", err.Error())
	case errors.Is(err, models.ErrQuoteExpired):
		WriteError(w, http.StatusConflict, "QUOTE_EXPIRED", err.Error())
	case errors.Is(err, models.ErrNoProviders):
		WriteError(w, http.StatusServiceUnavailable, "NO_PROVIDERS", err.Error())
	case errors.Is(err, models.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, booking.ErrPaymentUnavailable):
		WriteError(w, http.StatusBadGateway, "PAYMENT_UNAVAILABLE", err.Error())
	default:
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	}
}
