package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/invoicegen/platform/internal/domain/invoices"
)

// InvoiceRepository persists invoices and their line items.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs a repository using a pooled DB handle.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// partyColumn stores an invoices.Party as JSONB.
type partyColumn invoices.Party

func (p partyColumn) Value() (driver.Value, error) {
	b, err := json.Marshal(invoices.Party(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *partyColumn) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = partyColumn{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan party: unsupported type %T", src)
	}
	var party invoices.Party
	if err := json.Unmarshal(data, &party); err != nil {
		return fmt.Errorf("scan party: %w", err)
	}
	*p = partyColumn(party)
	return nil
}

type invoiceRow struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	InvoiceNumber string      `db:"invoice_number"`
	InvoiceDate   time.Time   `db:"invoice_date"`
	DueDate       time.Time   `db:"due_date"`
	BillFrom      partyColumn `db:"bill_from"`
	BillTo        partyColumn `db:"bill_to"`
	Notes         string      `db:"notes"`
	PaymentTerms  string      `db:"payment_terms"`
	Status        string      `db:"status"`
	Subtotal      int64       `db:"subtotal"`
	TaxTotal      int64       `db:"tax_total"`
	Total         int64       `db:"total"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r invoiceRow) toDomain() invoices.Invoice {
	return invoices.Invoice{
		ID:            r.ID,
		UserID:        r.UserID,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceDate:   r.InvoiceDate,
		DueDate:       r.DueDate,
		BillFrom:      invoices.Party(r.BillFrom),
		BillTo:        invoices.Party(r.BillTo),
		Notes:         r.Notes,
		PaymentTerms:  r.PaymentTerms,
		Status:        invoices.Status(r.Status),
		Subtotal:      invoices.Cents(r.Subtotal),
		TaxTotal:      invoices.Cents(r.TaxTotal),
		Total:         invoices.Cents(r.Total),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type itemRow struct {
	InvoiceID  string  `db:"invoice_id"`
	Name       string  `db:"name"`
	Quantity   float64 `db:"quantity"`
	UnitPrice  int64   `db:"unit_price"`
	TaxPercent float64 `db:"tax_percent"`
	Total      int64   `db:"total"`
}

func (r itemRow) toDomain() invoices.LineItem {
	return invoices.LineItem{
		Name:       r.Name,
		Quantity:   r.Quantity,
		UnitPrice:  invoices.Cents(r.UnitPrice),
		TaxPercent: r.TaxPercent,
		Total:      invoices.Cents(r.Total),
	}
}

const invoiceColumns = `id, user_id, invoice_number, invoice_date, due_date, bill_from, bill_to, notes,
       payment_terms, status, subtotal, tax_total, total, created_at, updated_at`

// FindByID retrieves an invoice and its line items.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (invoices.Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return invoices.Invoice{}, invoices.ErrNotFound
	}

	var row invoiceRow
	err := r.db.GetContext(ctx, &row, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoices.Invoice{}, invoices.ErrNotFound
		}
		return invoices.Invoice{}, fmt.Errorf("find invoice: %w", err)
	}

	inv := row.toDomain()
	items, err := r.fetchItems(ctx, []string{inv.ID})
	if err != nil {
		return invoices.Invoice{}, err
	}
	inv.Items = items[inv.ID]
	return inv, nil
}

// fetchItems loads line items for the given invoices, keyed by invoice id.
func (r *InvoiceRepository) fetchItems(ctx context.Context, ids []string) (map[string][]invoices.LineItem, error) {
	out := make(map[string][]invoices.LineItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
        SELECT invoice_id, name, quantity, unit_price, tax_percent, total
          FROM invoice_items
         WHERE invoice_id IN (?)
         ORDER BY invoice_id, sort_order
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("build line item query: %w", err)
	}

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	for _, row := range rows {
		out[row.InvoiceID] = append(out[row.InvoiceID], row.toDomain())
	}
	return out, nil
}

// Save inserts or updates an invoice and replaces its line items in one transaction.
func (r *InvoiceRepository) Save(ctx context.Context, inv invoices.Invoice) (invoices.Invoice, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return invoices.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}

	now := time.Now().UTC()
	if inv.ID == "" {
		inv.ID = uuid.NewString()
		const insert = `
            INSERT INTO invoices (id, user_id, invoice_number, invoice_date, due_date, bill_from, bill_to, notes,
                                  payment_terms, status, subtotal, tax_total, total, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        `
		if _, err := tx.ExecContext(ctx, insert,
			inv.ID,
			inv.UserID,
			inv.InvoiceNumber,
			inv.InvoiceDate,
			inv.DueDate,
			partyColumn(inv.BillFrom),
			partyColumn(inv.BillTo),
			inv.Notes,
			inv.PaymentTerms,
			string(inv.Status),
			int64(inv.Subtotal),
			int64(inv.TaxTotal),
			int64(inv.Total),
			now,
			now,
		); err != nil {
			tx.Rollback()
			return invoices.Invoice{}, fmt.Errorf("insert invoice: %w", err)
		}
		inv.CreatedAt = now
		inv.UpdatedAt = now
	} else {
		const update = `
            UPDATE invoices
               SET invoice_number = $2,
                   invoice_date = $3,
                   due_date = $4,
                   bill_from = $5,
                   bill_to = $6,
                   notes = $7,
                   payment_terms = $8,
                   status = $9,
                   subtotal = $10,
                   tax_total = $11,
                   total = $12,
                   updated_at = $13
             WHERE id = $1
            RETURNING created_at
        `
		var created time.Time
		if err := tx.QueryRowxContext(ctx, update,
			inv.ID,
			inv.InvoiceNumber,
			inv.InvoiceDate,
			inv.DueDate,
			partyColumn(inv.BillFrom),
			partyColumn(inv.BillTo),
			inv.Notes,
			inv.PaymentTerms,
			string(inv.Status),
			int64(inv.Subtotal),
			int64(inv.TaxTotal),
			int64(inv.Total),
			now,
		).Scan(&created); err != nil {
			tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				return invoices.Invoice{}, invoices.ErrNotFound
			}
			return invoices.Invoice{}, fmt.Errorf("update invoice: %w", err)
		}
		inv.CreatedAt = created
		inv.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			tx.Rollback()
			return invoices.Invoice{}, fmt.Errorf("delete invoice items: %w", err)
		}
	}

	if err := insertItems(ctx, tx, inv); err != nil {
		tx.Rollback()
		return invoices.Invoice{}, err
	}

	if err := tx.Commit(); err != nil {
		return invoices.Invoice{}, fmt.Errorf("commit invoice save: %w", err)
	}
	return inv, nil
}

func insertItems(ctx context.Context, tx *sqlx.Tx, inv invoices.Invoice) error {
	const insert = `
        INSERT INTO invoice_items (id, invoice_id, name, quantity, unit_price, tax_percent, total, sort_order)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `
	for idx, item := range inv.Items {
		if _, err := tx.ExecContext(ctx, insert,
			uuid.NewString(),
			inv.ID,
			item.Name,
			item.Quantity,
			int64(item.UnitPrice),
			item.TaxPercent,
			int64(item.Total),
			idx,
		); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

// Delete removes an invoice; its items go with it through the cascading foreign key.
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invoices.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete invoice rows: %w", err)
	}
	if n == 0 {
		return invoices.ErrNotFound
	}
	return nil
}

// ListByUser returns a user's invoices, newest invoice date first.
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string, filter invoices.ListFilter) ([]invoices.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY invoice_date DESC, created_at DESC`

	var rows []invoiceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return r.withItems(ctx, rows)
}

// CountByUser returns how many invoices a user has issued.
func (r *InvoiceRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM invoices WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("count invoices: %w", err)
	}
	return n, nil
}

// MarkOverdue flips matching invoices to Overdue in a single conditional UPDATE, so an edit
// committed by the owner in the meantime is never overwritten.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, cutoff time.Time, from []invoices.Status) (int, error) {
	if len(from) == 0 {
		return 0, nil
	}
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = string(s)
	}

	query, args, err := sqlx.In(`UPDATE invoices SET status = ?, updated_at = ? WHERE status IN (?) AND due_date < ?`,
		string(invoices.StatusOverdue), time.Now().UTC(), names, cutoff)
	if err != nil {
		return 0, fmt.Errorf("build overdue query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue rows: %w", err)
	}
	return int(n), nil
}

func (r *InvoiceRepository) withItems(ctx context.Context, rows []invoiceRow) ([]invoices.Invoice, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	items, err := r.fetchItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]invoices.Invoice, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
		out[i].Items = items[row.ID]
	}
	return out, nil
}

var _ invoices.Repository = (*InvoiceRepository)(nil)
