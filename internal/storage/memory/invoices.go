package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/invoicegen/platform/internal/domain/invoices"
)

// InvoiceRepository is an in-memory implementation of invoices.Repository.
type InvoiceRepository struct {
	mu       sync.RWMutex
	invoices map[string]invoices.Invoice
}

// NewInvoiceRepository creates an in-memory invoice repo.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{
		invoices: make(map[string]invoices.Invoice),
	}
}

func (r *InvoiceRepository) FindByID(_ context.Context, id string) (invoices.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok {
		return invoices.Invoice{}, invoices.ErrNotFound
	}
	return clone(inv), nil
}

func (r *InvoiceRepository) Save(_ context.Context, inv invoices.Invoice) (invoices.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if inv.ID == "" {
		inv.ID = newID()
		inv.CreatedAt = now
	} else {
		existing, ok := r.invoices[inv.ID]
		if !ok {
			return invoices.Invoice{}, invoices.ErrNotFound
		}
		inv.CreatedAt = existing.CreatedAt
	}
	inv.UpdatedAt = now

	r.invoices[inv.ID] = clone(inv)
	return inv, nil
}

func (r *InvoiceRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.invoices[id]; !ok {
		return invoices.ErrNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *InvoiceRepository) ListByUser(_ context.Context, userID string, filter invoices.ListFilter) ([]invoices.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]invoices.Invoice, 0)
	for _, inv := range r.invoices {
		if inv.UserID != userID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		list = append(list, clone(inv))
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].InvoiceDate.Equal(list[j].InvoiceDate) {
			return list[i].InvoiceDate.After(list[j].InvoiceDate)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *InvoiceRepository) CountByUser(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, inv := range r.invoices {
		if inv.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *InvoiceRepository) MarkOverdue(_ context.Context, cutoff time.Time, from []invoices.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	marked := 0
	for id, inv := range r.invoices {
		if !inv.DueDate.Before(cutoff) || !hasStatus(from, inv.Status) {
			continue
		}
		inv.Status = invoices.StatusOverdue
		inv.UpdatedAt = now
		r.invoices[id] = inv
		marked++
	}
	return marked, nil
}

func hasStatus(statuses []invoices.Status, s invoices.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// clone detaches the item slice so callers cannot mutate stored state.
func clone(inv invoices.Invoice) invoices.Invoice {
	inv.Items = append([]invoices.LineItem(nil), inv.Items...)
	return inv
}

var _ invoices.Repository = (*InvoiceRepository)(nil)
