package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-api/internal/api"
	"github.com/noah-isme/invoice-api/internal/client"
	"github.com/noah-isme/invoice-api/internal/common"
	"github.com/noah-isme/invoice-api/internal/invoicing"
	"github.com/noah-isme/invoice-api/internal/store/sqlite"
)

func newServer(t *testing.T, wrap func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	st, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	svc, err := invoicing.NewService(invoicing.ServiceConfig{Store: st})
	require.NoError(t, err)
	rt, err := api.NewRouter(api.Config{Service: svc})
	require.NoError(t, err)
	var h http.Handler = rt
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTrip(t *testing.T) {
	srv := newServer(t, nil)
	c, err := client.New(client.Config{BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	require.NoError(t, err)
	ctx := context.Background()

	customerID, err := c.CreateCustomer(ctx, client.NewCustomer{Name: "Acme", Email: "billing@acme.test"})
	require.NoError(t, err)
	invoiceID, err := c.CreateInvoice(ctx, client.NewInvoice{CustomerID: customerID})
	require.NoError(t, err)
	_, err = c.AddItem(ctx, invoiceID, client.NewItem{Description: "Widget", Qty: client.Float(3), UnitPrice: client.Float(2.5)})
	require.NoError(t, err)
	_, err = c.AddItem(ctx, invoiceID, client.NewItem{Description: "Install", UnitPrice: client.Float(19.99)})
	require.NoError(t, err)

	detail, err := c.GetInvoice(ctx, invoiceID)
	require.NoError(t, err)
	require.Equal(t, int64(2749), detail.Totals.TotalCents)
	require.Equal(t, "billing@acme.test", detail.Invoice.CustomerEmail)

	customers, err := c.ListCustomers(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, customers, 1)

	invoices, err := c.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Equal(t, "Acme", invoices[0].CustomerName)
}

func TestClientSurfacesServerError(t *testing.T) {
	srv := newServer(t, nil)
	c, err := client.New(client.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.CreateCustomer(context.Background(), client.NewCustomer{Name: "  "})
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "Name required", apiErr.Error())

	_, err = c.GetInvoice(context.Background(), "missing")
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "Not found", apiErr.Message)
}

func TestClientErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.JSON(w, http.StatusBadGateway, map[string]string{})
	}))
	t.Cleanup(srv.Close)
	c, err := client.New(client.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.ListInvoices(context.Background())
	require.EqualError(t, err, "API error 502")
}

func TestClientNonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c, err := client.New(client.Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.ListCustomers(context.Background(), "")
	require.EqualError(t, err, "Server error 500: upstream exploded\n")
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := client.New(client.Config{BaseURL: url})
	require.NoError(t, err)

	_, err = c.ListInvoices(context.Background())
	require.ErrorContains(t, err, "network error")
}

func TestClientIdempotentCreate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var (
		mu   sync.Mutex
		keys []string
	)
	srv := newServer(t, func(next http.Handler) http.Handler {
		idem := common.Idem{R: rdb}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if k := r.Header.Get("Idempotency-Key"); k != "" {
				mu.Lock()
				keys = append(keys, k)
				mu.Unlock()
			}
			idem.Middleware(next).ServeHTTP(w, r)
		})
	})
	c, err := client.New(client.Config{BaseURL: srv.URL, HTTPClient: srv.Client(), Idempotent: true})
	require.NoError(t, err)

	_, err = c.CreateCustomer(context.Background(), client.NewCustomer{Name: "One"})
	require.NoError(t, err)
	_, err = c.CreateCustomer(context.Background(), client.NewCustomer{Name: "Two"})
	require.NoError(t, err)
	mu.Lock()
	require.Len(t, keys, 2)
	require.NotEqual(t, keys[0], keys[1])
	mu.Unlock()

	customers, err := c.ListCustomers(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, customers, 2)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := client.New(client.Config{BaseURL: "/api"})
	require.Error(t, err)
}
