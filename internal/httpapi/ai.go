package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/invoicegen/platform/internal/auth"
	"github.com/invoicegen/platform/internal/domain/assistant"
)

func registerAIRoutes(api *mux.Router, logger *slog.Logger, service assistant.Service, guard func(http.Handler) http.Handler) {
	api.Handle("/ai/parse-text", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		if !decodeJSON(w, r, &payload) {
			return
		}
		parsed, err := service.ParseInvoiceText(r.Context(), payload.Text)
		if err != nil {
			respondServiceError(w, logger, err, "Failed to parse invoice data from text")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"parsedData": parsed})
	}))).Methods(http.MethodPost)

	api.Handle("/ai/generate-reminder", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			InvoiceID string `json:"invoiceId"`
		}
		if !decodeJSON(w, r, &payload) {
			return
		}
		reminder, err := service.GenerateReminder(r.Context(), auth.UserID(r.Context()), payload.InvoiceID)
		if err != nil {
			respondServiceError(w, logger, err, "Failed to generate reminder")
			return
		}
		respondJSON(w, http.StatusOK, reminder)
	}))).Methods(http.MethodPost)

	api.Handle("/ai/dashboard-summary", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		insights, err := service.DashboardSummary(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			respondServiceError(w, logger, err, "Failed to generate dashboard summary")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"insights": insights})
	}))).Methods(http.MethodGet)
}
