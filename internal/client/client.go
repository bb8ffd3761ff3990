// Package client is a Go client for the invoice JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/invoice-api/internal/invoicing"
	"github.com/noah-isme/invoice-api/internal/resilience"
)

// Error is returned for non-2xx responses. Message carries the server's
// error field, or "API error <status>" when the body has none.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxAttempts int
	Breaker     *resilience.Breaker
	// Idempotent attaches a fresh Idempotency-Key to every create call so
	// retried writes are replayed rather than duplicated.
	Idempotent bool
}

// Client calls the invoice API.
type Client struct {
	base       *url.URL
	http       resilience.HTTPClient
	idempotent bool
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("client: base url must be absolute")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = HTTPClient(cfg.Timeout)
	}
	return &Client{
		base: base,
		http: resilience.HTTPClient{
			Client:      hc,
			Breaker:     cfg.Breaker,
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: 100 * time.Millisecond,
			Jitter:      0.2,
		},
		idempotent: cfg.Idempotent,
	}, nil
}

// HTTPClient returns an HTTP client with an instrumented transport.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewCustomer is the create-customer payload.
type NewCustomer struct {
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	ServiceAddress string `json:"service_address,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// NewInvoice is the create-invoice payload.
type NewInvoice struct {
	CustomerID    string `json:"customer_id"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
}

// NewItem is the add-item payload. UnitPrice is in major currency units.
type NewItem struct {
	Description string   `json:"description"`
	Qty         *float64 `json:"qty,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
}

type created struct {
	ID string `json:"id"`
}

// ListCustomers calls GET /api/customers.
func (c *Client) ListCustomers(ctx context.Context, q string) ([]invoicing.Customer, error) {
	query := url.Values{}
	if q = strings.TrimSpace(q); q != "" {
		query.Set("q", q)
	}
	var out []invoicing.Customer
	err := c.do(ctx, http.MethodGet, "/api/customers", query, nil, &out)
	return out, err
}

// CreateCustomer calls POST /api/customers and returns the new id.
func (c *Client) CreateCustomer(ctx context.Context, in NewCustomer) (string, error) {
	return c.create(ctx, "/api/customers", in)
}

// ListInvoices calls GET /api/invoices.
func (c *Client) ListInvoices(ctx context.Context) ([]invoicing.Invoice, error) {
	var out []invoicing.Invoice
	err := c.do(ctx, http.MethodGet, "/api/invoices", nil, nil, &out)
	return out, err
}

// CreateInvoice calls POST /api/invoices and returns the new id.
func (c *Client) CreateInvoice(ctx context.Context, in NewInvoice) (string, error) {
	return c.create(ctx, "/api/invoices", in)
}

// AddItem calls POST /api/invoices/{id}/items and returns the new item id.
func (c *Client) AddItem(ctx context.Context, invoiceID string, in NewItem) (string, error) {
	return c.create(ctx, "/api/invoices/"+url.PathEscape(invoiceID)+"/items", in)
}

// GetInvoice calls GET /api/invoices/{id}.
func (c *Client) GetInvoice(ctx context.Context, id string) (invoicing.InvoiceDetail, error) {
	var out invoicing.InvoiceDetail
	err := c.do(ctx, http.MethodGet, "/api/invoices/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) create(ctx context.Context, path string, body any) (string, error) {
	var out created
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("client: response carried no id")
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost && c.idempotent {
		req.Header.Set(resilience.IdempotencyHeader, uuid.NewString())
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if !ok {
			return &Error{Status: resp.StatusCode, Message: fmt.Sprintf("Server error %d: %s", resp.StatusCode, truncate(string(data), 100))}
		}
		return fmt.Errorf("client: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	if !ok {
		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.Unmarshal(data, &e)
		msg := e.Error
		if msg == "" {
			msg = fmt.Sprintf("API error %d", resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Code: e.Code, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.New("client: invalid JSON response from server")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Float returns a pointer to v for the optional numeric fields of NewItem.
func Float(v float64) *float64 {
	return &v
}
