package invoicing

import (
	"context"
	"encoding/json"
	"errors"
)

// StatusDraft is assigned to every newly created invoice.
const StatusDraft = "Draft"

// ListLimit caps every list query.
const ListLimit = 200

var (
	// ErrNotFound is returned by a Store when the requested row does not exist.
	ErrNotFound = errors.New("invoicing: not found")
	// ErrReferenceMissing is returned by a Store when a foreign key points at no row.
	ErrReferenceMissing = errors.New("invoicing: referenced row missing")
)

// Customer is a billable party.
type Customer struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Phone          string `json:"phone" db:"phone"`
	Email          string `json:"email" db:"email"`
	ServiceAddress string `json:"service_address" db:"service_address"`
	Notes          string `json:"notes" db:"notes"`
	CreatedAt      string `json:"created_at" db:"created_at"`
}

// Invoice is an invoice header. CustomerName and CustomerEmail are populated
// from the customers join on reads and are never written.
type Invoice struct {
	ID            string `json:"id" db:"id"`
	CustomerID    string `json:"customer_id" db:"customer_id"`
	InvoiceNumber string `json:"invoice_number" db:"invoice_number"`
	InvoiceDate   string `json:"invoice_date" db:"invoice_date"`
	DueDate       string `json:"due_date" db:"due_date"`
	Status        string `json:"status" db:"status"`
	TaxCents      int64  `json:"tax_cents" db:"tax_cents"`
	CreatedAt     string `json:"created_at" db:"created_at"`
	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty" db:"customer_email"`
}

// InvoiceItem is a single billed line.
type InvoiceItem struct {
	ID             string  `json:"id" db:"id"`
	InvoiceID      string  `json:"invoice_id" db:"invoice_id"`
	Description    string  `json:"description" db:"description"`
	Qty            float64 `json:"qty" db:"qty"`
	UnitPriceCents int64   `json:"unit_price_cents" db:"unit_price_cents"`
	CreatedAt      string  `json:"created_at" db:"created_at"`
}

// Totals are recomputed from line items and tax on every read.
type Totals struct {
	SubtotalCents int64 `json:"subtotalCents"`
	TaxCents      int64 `json:"taxCents"`
	TotalCents    int64 `json:"totalCents"`
}

// InvoiceDetail is the payload of the single-invoice read.
type InvoiceDetail struct {
	Invoice Invoice       `json:"invoice"`
	Items   []InvoiceItem `json:"items"`
	Totals  Totals        `json:"totals"`
}

// MarshalJSON always emits customer_email on the detail header, which list
// rows leave out.
func (d InvoiceDetail) MarshalJSON() ([]byte, error) {
	type header struct {
		Invoice
		CustomerEmail string `json:"customer_email"`
	}
	return json.Marshal(struct {
		Invoice header        `json:"invoice"`
		Items   []InvoiceItem `json:"items"`
		Totals  Totals        `json:"totals"`
	}{
		Invoice: header{Invoice: d.Invoice, CustomerEmail: d.Invoice.CustomerEmail},
		Items:   d.Items,
		Totals:  d.Totals,
	})
}

// Store is the data access contract. Implementations must bind every value
// as a query parameter.
type Store interface {
	ListCustomers(ctx context.Context, filter string) ([]Customer, error)
	InsertCustomer(ctx context.Context, c Customer) error
	ListInvoices(ctx context.Context) ([]Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) error
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) error
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceID string) ([]InvoiceItem, error)
	GetInvoiceTax(ctx context.Context, invoiceID string) (int64, error)
	Ping(ctx context.Context) error
}
