// Package postgres implements the invoicing store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/invoice-api/internal/invoicing"
)

const foreignKeyViolation = "23503"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is an invoicing.Store backed by PostgreSQL.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

var _ invoicing.Store = (*Store)(nil)

// New wraps a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres: pool not configured")
	}
	return s.pool.Ping(ctx)
}

const customerColumns = `id, name, phone, email, service_address, notes, created_at`

// ListCustomers returns up to ListLimit customers, newest first.
func (s *Store) ListCustomers(ctx context.Context, filter string) ([]invoicing.Customer, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter == "" {
		rows, err = s.db.Query(ctx, `
			SELECT `+customerColumns+`
			FROM customers
			ORDER BY created_at DESC, seq DESC
			LIMIT $1`, invoicing.ListLimit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+customerColumns+`
			FROM customers
			WHERE name ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1 OR service_address ILIKE $1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2`, invoicing.ContainsPattern(filter), invoicing.ListLimit)
	}
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.CollectableRow) (invoicing.Customer, error) {
		var c invoicing.Customer
		err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.ServiceAddress, &c.Notes, &c.CreatedAt)
		return c, err
	})
}

// InsertCustomer writes a new customer row.
func (s *Store) InsertCustomer(ctx context.Context, c invoicing.Customer) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO customers (id, name, phone, email, service_address, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Phone, c.Email, c.ServiceAddress, c.Notes, c.CreatedAt)
	return mapError(err)
}

// ListInvoices returns up to ListLimit invoices joined with their customer name, newest first.
func (s *Store) ListInvoices(ctx context.Context) ([]invoicing.Invoice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.customer_id, i.invoice_number, i.invoice_date, i.due_date,
		       i.status, i.tax_cents, i.created_at, c.name
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		ORDER BY i.created_at DESC, i.seq DESC
		LIMIT $1`, invoicing.ListLimit)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.CollectableRow) (invoicing.Invoice, error) {
		var inv invoicing.Invoice
		err := row.Scan(&inv.ID, &inv.CustomerID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.DueDate,
			&inv.Status, &inv.TaxCents, &inv.CreatedAt, &inv.CustomerName)
		return inv, err
	})
}

// InsertInvoice writes a new invoice row.
func (s *Store) InsertInvoice(ctx context.Context, inv invoicing.Invoice) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO invoices (id, customer_id, invoice_number, invoice_date, due_date, status, tax_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		inv.ID, inv.CustomerID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Status, inv.TaxCents, inv.CreatedAt)
	return mapError(err)
}

// InsertInvoiceItem writes a new line item row.
func (s *Store) InsertInvoiceItem(ctx context.Context, item invoicing.InvoiceItem) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, description, qty, unit_price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.InvoiceID, item.Description, item.Qty, item.UnitPriceCents, item.CreatedAt)
	return mapError(err)
}

// GetInvoice returns one invoice joined with customer name and email.
func (s *Store) GetInvoice(ctx context.Context, id string) (invoicing.Invoice, error) {
	var inv invoicing.Invoice
	err := s.db.QueryRow(ctx, `
		SELECT i.id, i.customer_id, i.invoice_number, i.invoice_date, i.due_date,
		       i.status, i.tax_cents, i.created_at, c.name, c.email
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1`, id).Scan(
		&inv.ID, &inv.CustomerID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.DueDate,
		&inv.Status, &inv.TaxCents, &inv.CreatedAt, &inv.CustomerName, &inv.CustomerEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoicing.Invoice{}, invoicing.ErrNotFound
		}
		return invoicing.Invoice{}, err
	}
	return inv, nil
}

// ListInvoiceItems returns an invoice's items in creation order.
func (s *Store) ListInvoiceItems(ctx context.Context, invoiceID string) ([]invoicing.InvoiceItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, invoice_id, description, qty, unit_price_cents, created_at
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY created_at ASC, seq ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.CollectableRow) (invoicing.InvoiceItem, error) {
		var it invoicing.InvoiceItem
		err := row.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Qty, &it.UnitPriceCents, &it.CreatedAt)
		return it, err
	})
}

// GetInvoiceTax returns the stored tax amount of an invoice.
func (s *Store) GetInvoiceTax(ctx context.Context, invoiceID string) (int64, error) {
	var tax int64
	err := s.db.QueryRow(ctx, `SELECT tax_cents FROM invoices WHERE id = $1`, invoiceID).Scan(&tax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, invoicing.ErrNotFound
		}
		return 0, err
	}
	return tax, nil
}

func collect[T any](rows pgx.Rows, scan pgx.RowToFunc[T]) ([]T, error) {
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("%w: %s", invoicing.ErrReferenceMissing, pgErr.ConstraintName)
	}
	return err
}
