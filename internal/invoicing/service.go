package invoicing

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/invoice-api/internal/common"
	"github.com/noah-isme/invoice-api/internal/ident"
	"github.com/noah-isme/invoice-api/internal/pricing"
)

// defaultDueDays is the due date offset applied when none is supplied.
const defaultDueDays = 14

// CustomerInput captures the payload for creating a customer.
type CustomerInput struct {
	Name           string
	Phone          string
	Email          string
	ServiceAddress string
	Notes          string
}

// InvoiceInput captures the payload for creating an invoice. Empty optional
// fields are defaulted.
type InvoiceInput struct {
	CustomerID    string
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
}

// ItemInput captures the payload for adding a line item. Nil numeric fields
// take their defaults (qty 1, unit price 0).
type ItemInput struct {
	Description string
	Qty         *float64
	UnitPrice   *float64
}

// Service implements the invoicing operations on top of a Store.
type Service struct {
	store Store
	gen   ident.Generator
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Generator ident.Generator
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("invoicing: store is required")
	}
	return &Service{store: cfg.Store, gen: cfg.Generator}, nil
}

// ListCustomers returns the newest customers, filtered by substring when q is non-empty.
func (s *Service) ListCustomers(ctx context.Context, q string) ([]Customer, error) {
	rows, err := s.store.ListCustomers(ctx, strings.TrimSpace(q))
	if err != nil {
		return nil, common.Internal(err)
	}
	if rows == nil {
		rows = []Customer{}
	}
	return rows, nil
}

// CreateCustomer inserts a customer and returns its id.
func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", common.Validation("Name required")
	}
	c := Customer{
		ID:             s.gen.NewID(),
		Name:           name,
		Phone:          input.Phone,
		Email:          input.Email,
		ServiceAddress: input.ServiceAddress,
		Notes:          input.Notes,
		CreatedAt:      s.gen.Now(),
	}
	if err := s.store.InsertCustomer(ctx, c); err != nil {
		return "", common.Internal(err)
	}
	return c.ID, nil
}

// ListInvoices returns the newest invoices with their customer names.
func (s *Service) ListInvoices(ctx context.Context) ([]Invoice, error) {
	rows, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, common.Internal(err)
	}
	if rows == nil {
		rows = []Invoice{}
	}
	return rows, nil
}

// CreateInvoice inserts a Draft invoice with zero tax and returns its id.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (string, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		return "", common.Validation("customer_id required")
	}
	inv := Invoice{
		ID:            s.gen.NewID(),
		CustomerID:    customerID,
		InvoiceNumber: valueOr(input.InvoiceNumber, s.gen.InvoiceNumber),
		InvoiceDate:   valueOr(input.InvoiceDate, s.gen.Today),
		DueDate: valueOr(input.DueDate, func() string {
			return s.gen.DateOffset(defaultDueDays)
		}),
		Status:    StatusDraft,
		TaxCents:  0,
		CreatedAt: s.gen.Now(),
	}
	if err := s.store.InsertInvoice(ctx, inv); err != nil {
		if errors.Is(err, ErrReferenceMissing) {
			return "", common.Validation("customer not found")
		}
		return "", common.Internal(err)
	}
	return inv.ID, nil
}

// AddItem appends a line item to an invoice and returns its id.
func (s *Service) AddItem(ctx context.Context, invoiceID string, input ItemInput) (string, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return "", common.Validation("description required")
	}
	qty := 1.0
	if input.Qty != nil {
		qty = *input.Qty
	}
	unitPrice := 0.0
	if input.UnitPrice != nil {
		unitPrice = *input.UnitPrice
	}
	// Amounts past pricing.MaxCents cannot be held as exact cents.
	if !pricing.InRange(unitPrice * 100) {
		return "", common.Validation("unit_price must be a number")
	}
	cents := pricing.ToCents(unitPrice)
	if !pricing.InRange(qty * float64(cents)) {
		return "", common.Validation("qty must be a number")
	}
	item := InvoiceItem{
		ID:             s.gen.NewID(),
		InvoiceID:      invoiceID,
		Description:    description,
		Qty:            qty,
		UnitPriceCents: cents,
		CreatedAt:      s.gen.Now(),
	}
	if err := s.store.InsertInvoiceItem(ctx, item); err != nil {
		if errors.Is(err, ErrReferenceMissing) {
			return "", common.NotFound(err)
		}
		return "", common.Internal(err)
	}
	return item.ID, nil
}

// GetInvoiceDetail returns an invoice with its ordered items and fresh totals.
func (s *Service) GetInvoiceDetail(ctx context.Context, id string) (InvoiceDetail, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return InvoiceDetail{}, common.NotFound(err)
		}
		return InvoiceDetail{}, common.Internal(err)
	}
	items, err := s.store.ListInvoiceItems(ctx, id)
	if err != nil {
		return InvoiceDetail{}, common.Internal(err)
	}
	if items == nil {
		items = []InvoiceItem{}
	}
	totals, err := s.ComputeTotals(ctx, id)
	if err != nil {
		return InvoiceDetail{}, err
	}
	return InvoiceDetail{Invoice: inv, Items: items, Totals: totals}, nil
}

// ComputeTotals sums the rounded line totals of an invoice and adds its tax.
// An invoice with no stored tax row contributes zero tax.
func (s *Service) ComputeTotals(ctx context.Context, invoiceID string) (Totals, error) {
	items, err := s.store.ListInvoiceItems(ctx, invoiceID)
	if err != nil {
		return Totals{}, common.Internal(err)
	}
	tax, err := s.store.GetInvoiceTax(ctx, invoiceID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Totals{}, common.Internal(err)
		}
		tax = 0
	}
	lines := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Item{Qty: it.Qty, UnitPriceCents: it.UnitPriceCents})
	}
	sum := pricing.Compute(lines, tax)
	return Totals{
		SubtotalCents: sum.SubtotalCents,
		TaxCents:      sum.TaxCents,
		TotalCents:    sum.TotalCents,
	}, nil
}

// Ping reports whether the underlying store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func valueOr(value string, fallback func() string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback()
}
