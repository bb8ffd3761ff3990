// Package sqlite implements the invoicing store on SQLite through sqlx and the
// pure-Go modernc driver. It backs local development and the test suites.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/noah-isme/invoice-api/internal/invoicing"
)

// Store is an invoicing.Store backed by SQLite.
type Store struct {
	db *sqlx.DB
}

var _ invoicing.Store = (*Store)(nil)

// Open connects to the SQLite database at dsn and applies the schema.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps in-memory databases alive and serialises writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListCustomers returns up to ListLimit customers, newest first.
func (s *Store) ListCustomers(ctx context.Context, filter string) ([]invoicing.Customer, error) {
	rows := []invoicing.Customer{}
	if filter == "" {
		err := s.db.SelectContext(ctx, &rows, `
			SELECT id, name, phone, email, service_address, notes, created_at
			FROM customers
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?`, invoicing.ListLimit)
		return rows, err
	}
	pattern := invoicing.ContainsPattern(filter)
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, phone, email, service_address, notes, created_at
		FROM customers
		WHERE name LIKE ? ESCAPE '\'
		   OR phone LIKE ? ESCAPE '\'
		   OR email LIKE ? ESCAPE '\'
		   OR service_address LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, pattern, pattern, pattern, pattern, invoicing.ListLimit)
	return rows, err
}

// InsertCustomer writes a new customer row.
func (s *Store) InsertCustomer(ctx context.Context, c invoicing.Customer) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, service_address, notes, created_at)
		VALUES (:id, :name, :phone, :email, :service_address, :notes, :created_at)`, c)
	return mapError(err)
}

// ListInvoices returns up to ListLimit invoices joined with their customer name, newest first.
func (s *Store) ListInvoices(ctx context.Context) ([]invoicing.Invoice, error) {
	rows := []invoicing.Invoice{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id, i.customer_id, i.invoice_number, i.invoice_date, i.due_date,
		       i.status, i.tax_cents, i.created_at, c.name AS customer_name
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		ORDER BY i.created_at DESC, i.rowid DESC
		LIMIT ?`, invoicing.ListLimit)
	return rows, err
}

// InsertInvoice writes a new invoice row.
func (s *Store) InsertInvoice(ctx context.Context, inv invoicing.Invoice) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO invoices (id, customer_id, invoice_number, invoice_date, due_date, status, tax_cents, created_at)
		VALUES (:id, :customer_id, :invoice_number, :invoice_date, :due_date, :status, :tax_cents, :created_at)`, inv)
	return mapError(err)
}

// InsertInvoiceItem writes a new line item row.
func (s *Store) InsertInvoiceItem(ctx context.Context, item invoicing.InvoiceItem) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO invoice_items (id, invoice_id, description, qty, unit_price_cents, created_at)
		VALUES (:id, :invoice_id, :description, :qty, :unit_price_cents, :created_at)`, item)
	return mapError(err)
}

// GetInvoice returns one invoice joined with customer name and email.
func (s *Store) GetInvoice(ctx context.Context, id string) (invoicing.Invoice, error) {
	var inv invoicing.Invoice
	err := s.db.GetContext(ctx, &inv, `
		SELECT i.id, i.customer_id, i.invoice_number, i.invoice_date, i.due_date,
		       i.status, i.tax_cents, i.created_at,
		       c.name AS customer_name, c.email AS customer_email
		FROM invoices i
		JOIN customers c ON c.id = i.customer_id
		WHERE i.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return invoicing.Invoice{}, invoicing.ErrNotFound
	}
	return inv, err
}

// ListInvoiceItems returns an invoice's items in creation order.
func (s *Store) ListInvoiceItems(ctx context.Context, invoiceID string) ([]invoicing.InvoiceItem, error) {
	rows := []invoicing.InvoiceItem{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, invoice_id, description, qty, unit_price_cents, created_at
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY created_at ASC, rowid ASC`, invoiceID)
	return rows, err
}

// GetInvoiceTax returns the stored tax amount of an invoice.
func (s *Store) GetInvoiceTax(ctx context.Context, invoiceID string) (int64, error) {
	var tax int64
	err := s.db.GetContext(ctx, &tax, `SELECT tax_cents FROM invoices WHERE id = ?`, invoiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, invoicing.ErrNotFound
	}
	return tax, err
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return fmt.Errorf("%w: %v", invoicing.ErrReferenceMissing, err)
	}
	return err
}

func withForeignKeys(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || dsn == ":memory:" {
		dsn = "file::memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}
