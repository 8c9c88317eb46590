package httpapi

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gorilla/mux"

	"github.com/invoicegen/platform/internal/auth"
	"github.com/invoicegen/platform/internal/domain/invoices"
)

// invoiceRequest is the wire form shared by create and update. Derived fields the client may echo
// back (totals, owner, timestamps) are ignored.
type invoiceRequest struct {
	InvoiceNumber *string             `json:"invoiceNumber"`
	InvoiceDate   *jsonDate           `json:"invoiceDate"`
	DueDate       *jsonDate           `json:"dueDate"`
	BillFrom      *invoices.Party     `json:"billFrom"`
	BillTo        *invoices.Party     `json:"billTo"`
	Items         []invoices.LineItem `json:"items"`
	Notes         *string             `json:"notes"`
	PaymentTerms  *string             `json:"paymentTerms"`
	Status        *invoices.Status    `json:"status"`
}

func (req invoiceRequest) createInput() invoices.CreateInput {
	in := invoices.CreateInput{Items: req.Items}
	if req.InvoiceNumber != nil {
		in.InvoiceNumber = *req.InvoiceNumber
	}
	if req.InvoiceDate != nil {
		in.InvoiceDate = req.InvoiceDate.Time
	}
	if req.DueDate != nil {
		in.DueDate = req.DueDate.Time
	}
	if req.BillFrom != nil {
		in.BillFrom = *req.BillFrom
	}
	if req.BillTo != nil {
		in.BillTo = *req.BillTo
	}
	if req.Notes != nil {
		in.Notes = *req.Notes
	}
	if req.PaymentTerms != nil {
		in.PaymentTerms = *req.PaymentTerms
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	return in
}

func (req invoiceRequest) updateInput() invoices.UpdateInput {
	in := invoices.UpdateInput{
		InvoiceNumber: req.InvoiceNumber,
		BillFrom:      req.BillFrom,
		BillTo:        req.BillTo,
		Items:         req.Items,
		Notes:         req.Notes,
		PaymentTerms:  req.PaymentTerms,
		Status:        req.Status,
	}
	if req.InvoiceDate != nil && !req.InvoiceDate.IsZero() {
		in.InvoiceDate = &req.InvoiceDate.Time
	}
	if req.DueDate != nil && !req.DueDate.IsZero() {
		in.DueDate = &req.DueDate.Time
	}
	return in
}

func registerInvoiceRoutes(api *mux.Router, logger *slog.Logger, service invoices.Service, protect func(http.Handler) http.Handler) {
	api.Handle("/invoices", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req invoiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		inv, err := service.Create(r.Context(), auth.UserID(r.Context()), req.createInput())
		if err != nil {
			respondServiceError(w, logger, err, "Failed to create invoice")
			return
		}
		respondJSON(w, http.StatusCreated, inv)
	}))).Methods(http.MethodPost)

	api.Handle("/invoices", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := invoices.ListFilter{Status: invoices.Status(r.URL.Query().Get("status"))}
		if err := validation.Validate(filter.Status, validation.In(invoices.StatusUnpaid, invoices.StatusPending, invoices.StatusPaid, invoices.StatusOverdue)); err != nil {
			respondValidation(w, validation.Errors{"status": err})
			return
		}
		list, err := service.List(r.Context(), auth.UserID(r.Context()), filter)
		if err != nil {
			respondServiceError(w, logger, err, "Failed to list invoices")
			return
		}
		if list == nil {
			list = []invoices.Invoice{}
		}
		respondJSON(w, http.StatusOK, list)
	}))).Methods(http.MethodGet)

	api.Handle("/invoices/{id}", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inv, err := service.Get(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"])
		if err != nil {
			respondServiceError(w, logger, err, "Failed to load invoice")
			return
		}
		respondJSON(w, http.StatusOK, inv)
	}))).Methods(http.MethodGet)

	api.Handle("/invoices/{id}", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req invoiceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		inv, err := service.Update(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"], req.updateInput())
		if err != nil {
			respondServiceError(w, logger, err, "Failed to update invoice")
			return
		}
		respondJSON(w, http.StatusOK, inv)
	}))).Methods(http.MethodPut)

	api.Handle("/invoices/{id}", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.Delete(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
			respondServiceError(w, logger, err, "Failed to delete invoice")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"message": "Invoice deleted successfully"})
	}))).Methods(http.MethodDelete)
}
