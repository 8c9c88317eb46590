package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/invoicegen/platform/internal/domain/assistant"
	"github.com/invoicegen/platform/internal/domain/invoices"
	"github.com/invoicegen/platform/internal/domain/users"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func respondValidation(w http.ResponseWriter, errs validation.Errors) {
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		if v != nil {
			fields[k] = v.Error()
		}
	}
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"message": "Validation failed",
		"errors":  fields,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}
	return true
}

// respondServiceError maps domain errors to HTTP responses. Anything unrecognised is logged and
// reported as a 500 carrying fallback.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		respondValidation(w, verrs)
	case errors.Is(err, invoices.ErrNotFound):
		respondError(w, http.StatusNotFound, "Invoice not found")
	case errors.Is(err, invoices.ErrNotOwner):
		respondError(w, http.StatusUnauthorized, "Not authorized")
	case errors.Is(err, users.ErrNotFound):
		respondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, assistant.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "AI features are not configured")
	default:
		logger.Error(fallback, "err", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}
