package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	ErrNotImplemented = errors.New("invoices repository: not implemented")
	ErrNotFound       = errors.New("invoice not found")
	ErrNotOwner       = errors.New("invoice belongs to another user")
)

const (
	defaultPaymentTerms = "Net 15"
	recentLimit         = 5

	// Bounds keep every derived total well inside int64 cents.
	maxItems     = 500
	maxQuantity  = 1e6
	maxUnitPrice = Cents(1e9)
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusUnpaid  Status = "Unpaid"
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
)

var knownStatuses = []interface{}{StatusUnpaid, StatusPending, StatusPaid, StatusOverdue}

// Open reports whether money is still owed on an invoice in this status.
func (s Status) Open() bool {
	return s != StatusPaid
}

// Party is one side of an invoice. The sender fills BusinessName, the recipient ClientName.
type Party struct {
	BusinessName string `json:"businessName,omitempty"`
	ClientName   string `json:"clientName,omitempty"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

func (p Party) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, is.Email),
		validation.Field(&p.BusinessName, validation.Length(0, 200)),
		validation.Field(&p.ClientName, validation.Length(0, 200)),
	)
}

// LineItem is a billable row. Total is derived and ignored on input.
type LineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  Cents   `json:"unitPrice"`
	TaxPercent float64 `json:"taxPercent"`
	Total      Cents   `json:"total"`
}

// UnmarshalJSON accepts quantity and taxPercent as numbers or numeric strings, like Cents.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	aux := struct {
		*plain
		Quantity   looseFloat `json:"quantity"`
		TaxPercent looseFloat `json:"taxPercent"`
	}{
		plain:      (*plain)(li),
		Quantity:   looseFloat(li.Quantity),
		TaxPercent: looseFloat(li.TaxPercent),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	li.Quantity = float64(aux.Quantity)
	li.TaxPercent = float64(aux.TaxPercent)
	return nil
}

func (li LineItem) Validate() error {
	return validation.ValidateStruct(&li,
		validation.Field(&li.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&li.Quantity, validation.Required, validation.Min(0.0), validation.Max(maxQuantity)),
		validation.Field(&li.UnitPrice, validation.Min(Cents(0)), validation.Max(maxUnitPrice)),
		validation.Field(&li.TaxPercent, validation.Min(0.0), validation.Max(100.0)),
	)
}

// Invoice is a bill issued by a user to one client.
type Invoice struct {
	ID            string     `json:"_id"`
	UserID        string     `json:"user"`
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   time.Time  `json:"invoiceDate"`
	DueDate       time.Time  `json:"dueDate"`
	BillFrom      Party      `json:"billFrom"`
	BillTo        Party      `json:"billTo"`
	Items         []LineItem `json:"items"`
	Notes         string     `json:"notes"`
	PaymentTerms  string     `json:"paymentTerms"`
	Status        Status     `json:"status"`
	Subtotal      Cents      `json:"subtotal"`
	TaxTotal      Cents      `json:"taxTotal"`
	Total         Cents      `json:"total"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ListFilter narrows a user's invoice listing.
type ListFilter struct {
	Status Status
}

// Repository abstracts invoice persistence.
type Repository interface {
	FindByID(ctx context.Context, id string) (Invoice, error)
	Save(ctx context.Context, invoice Invoice) (Invoice, error)
	Delete(ctx context.Context, id string) error
	// ListByUser returns the user's invoices, newest invoice date first.
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Invoice, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// MarkOverdue moves invoices in one of from whose due date is before cutoff to
	// StatusOverdue. Only status and updated_at change, and the status is re-checked at write time.
	MarkOverdue(ctx context.Context, cutoff time.Time, from []Status) (int, error)
}

// NullRepository returns ErrNotImplemented for all operations.
type NullRepository struct{}

func (NullRepository) FindByID(context.Context, string) (Invoice, error) {
	return Invoice{}, ErrNotImplemented
}

func (NullRepository) Save(context.Context, Invoice) (Invoice, error) {
	return Invoice{}, ErrNotImplemented
}

func (NullRepository) Delete(context.Context, string) error { return ErrNotImplemented }

func (NullRepository) ListByUser(context.Context, string, ListFilter) ([]Invoice, error) {
	return nil, ErrNotImplemented
}

func (NullRepository) CountByUser(context.Context, string) (int, error) {
	return 0, ErrNotImplemented
}

func (NullRepository) MarkOverdue(context.Context, time.Time, []Status) (int, error) {
	return 0, ErrNotImplemented
}

// Service provides invoice business logic scoped to the calling user.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (Invoice, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Invoice, error)
	Get(ctx context.Context, userID, id string) (Invoice, error)
	Update(ctx context.Context, userID, id string, input UpdateInput) (Invoice, error)
	Delete(ctx context.Context, userID, id string) error
	Summarize(ctx context.Context, userID string) (Summary, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// CreateInput is used to create new invoices. Zero values take the documented defaults.
type CreateInput struct {
	InvoiceNumber string     `json:"invoiceNumber"`
	InvoiceDate   time.Time  `json:"invoiceDate"`
	DueDate       time.Time  `json:"dueDate"`
	BillFrom      Party      `json:"billFrom"`
	BillTo        Party      `json:"billTo"`
	Items         []LineItem `json:"items"`
	Notes         string     `json:"notes"`
	PaymentTerms  string     `json:"paymentTerms"`
	Status        Status     `json:"status"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.InvoiceNumber, validation.Length(0, 64)),
		validation.Field(&in.BillFrom),
		validation.Field(&in.BillTo),
		validation.Field(&in.Items, validation.Required, validation.Length(1, maxItems)),
		validation.Field(&in.PaymentTerms, validation.Length(0, 64)),
		validation.Field(&in.Status, validation.In(knownStatuses...)),
	)
}

// UpdateInput carries a partial update. Nil fields keep their stored value; a non-nil Items
// replaces the whole item list.
type UpdateInput struct {
	InvoiceNumber *string    `json:"invoiceNumber"`
	InvoiceDate   *time.Time `json:"invoiceDate"`
	DueDate       *time.Time `json:"dueDate"`
	BillFrom      *Party     `json:"billFrom"`
	BillTo        *Party     `json:"billTo"`
	Items         []LineItem `json:"items"`
	Notes         *string    `json:"notes"`
	PaymentTerms  *string    `json:"paymentTerms"`
	Status        *Status    `json:"status"`
}

func (in UpdateInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.InvoiceNumber, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&in.BillFrom),
		validation.Field(&in.BillTo),
		validation.Field(&in.Items, validation.Length(1, maxItems)),
		validation.Field(&in.PaymentTerms, validation.Length(0, 64)),
		validation.Field(&in.Status, validation.In(knownStatuses...)),
	)
	if in.Items != nil && len(in.Items) == 0 {
		errs, _ := err.(validation.Errors)
		if errs == nil {
			errs = validation.Errors{}
		}
		errs["items"] = errors.New("cannot be blank")
		return errs
	}
	return err
}

func (in UpdateInput) trimmed() UpdateInput {
	in.InvoiceNumber = trimPtr(in.InvoiceNumber)
	in.Notes = trimPtr(in.Notes)
	in.PaymentTerms = trimPtr(in.PaymentTerms)
	return in
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}

// Summary aggregates a user's invoices for the dashboard.
type Summary struct {
	TotalInvoices    int       `json:"totalInvoices"`
	PaidInvoices     int       `json:"paidInvoices"`
	UnpaidInvoices   int       `json:"unpaidInvoices"`
	OverdueInvoices  int       `json:"overdueInvoices"`
	TotalPaid        Cents     `json:"totalPaid"`
	TotalOutstanding Cents     `json:"totalOutstanding"`
	LastUpdated      time.Time `json:"lastUpdated"`
	Recent           []Invoice `json:"recentInvoices"`
}

// NewService builds an invoice service.
func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

type service struct {
	repo Repository
	now  func() time.Time
}

func (s *service) Create(ctx context.Context, userID string, input CreateInput) (Invoice, error) {
	if err := input.Validate(); err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		UserID:        userID,
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		InvoiceDate:   input.InvoiceDate,
		DueDate:       input.DueDate,
		BillFrom:      input.BillFrom,
		BillTo:        input.BillTo,
		Items:         input.Items,
		Notes:         strings.TrimSpace(input.Notes),
		PaymentTerms:  strings.TrimSpace(input.PaymentTerms),
		Status:        input.Status,
	}

	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = s.now().UTC()
	}
	if inv.PaymentTerms == "" {
		inv.PaymentTerms = defaultPaymentTerms
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = dueDateFor(inv.InvoiceDate, inv.PaymentTerms)
	}
	if inv.Status == "" {
		inv.Status = StatusUnpaid
	}
	if inv.InvoiceNumber == "" {
		n, err := s.repo.CountByUser(ctx, userID)
		if err != nil {
			return Invoice{}, err
		}
		inv.InvoiceNumber = fmt.Sprintf("INV-%03d", n+1)
	}

	inv.recalculate()
	return s.repo.Save(ctx, inv)
}

func (s *service) List(ctx context.Context, userID string, filter ListFilter) ([]Invoice, error) {
	return s.repo.ListByUser(ctx, userID, filter)
}

func (s *service) Get(ctx context.Context, userID, id string) (Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.UserID != userID {
		return Invoice{}, ErrNotOwner
	}
	return inv, nil
}

func (s *service) Update(ctx context.Context, userID, id string, input UpdateInput) (Invoice, error) {
	input = input.trimmed()
	if err := input.Validate(); err != nil {
		return Invoice{}, err
	}

	inv, err := s.Get(ctx, userID, id)
	if err != nil {
		return Invoice{}, err
	}

	if input.InvoiceNumber != nil {
		inv.InvoiceNumber = *input.InvoiceNumber
	}
	if input.InvoiceDate != nil {
		inv.InvoiceDate = *input.InvoiceDate
	}
	if input.DueDate != nil {
		inv.DueDate = *input.DueDate
	}
	if input.BillFrom != nil {
		inv.BillFrom = *input.BillFrom
	}
	if input.BillTo != nil {
		inv.BillTo = *input.BillTo
	}
	if input.Items != nil {
		inv.Items = input.Items
	}
	if input.Notes != nil {
		inv.Notes = *input.Notes
	}
	if input.PaymentTerms != nil {
		inv.PaymentTerms = *input.PaymentTerms
	}
	if input.Status != nil {
		inv.Status = *input.Status
	}

	inv.recalculate()
	return s.repo.Save(ctx, inv)
}

func (s *service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) Summarize(ctx context.Context, userID string) (Summary, error) {
	list, err := s.repo.ListByUser(ctx, userID, ListFilter{})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{TotalInvoices: len(list)}
	for _, inv := range list {
		if inv.Status.Open() {
			sum.UnpaidInvoices++
			sum.TotalOutstanding += inv.Total
			if inv.Status == StatusOverdue {
				sum.OverdueInvoices++
			}
		} else {
			sum.PaidInvoices++
			sum.TotalPaid += inv.Total
		}
		if inv.UpdatedAt.After(sum.LastUpdated) {
			sum.LastUpdated = inv.UpdatedAt
		}
	}

	recent := append([]Invoice(nil), list...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	sum.Recent = recent
	return sum, nil
}

// MarkOverdue flags open invoices that fell due before the start of now's day (UTC). A date-only
// due date is stored as midnight, so the invoice stays current for the whole day it is due.
func (s *service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	y, m, d := now.UTC().Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	marked, err := s.repo.MarkOverdue(ctx, cutoff, []Status{StatusUnpaid, StatusPending})
	if err != nil {
		return marked, fmt.Errorf("mark overdue: %w", err)
	}
	return marked, nil
}
