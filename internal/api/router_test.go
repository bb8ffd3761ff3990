package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvoiceMatchers(t *testing.T) {
	cases := []struct {
		path   string
		items  string
		byID   string
		itemOK bool
		byIDOK bool
	}{
		{path: "/api/invoices/abc/items", items: "abc", itemOK: true},
		{path: "/api/invoices/abc", byID: "abc", byIDOK: true},
		{path: "/api/invoices/items", byID: "items", byIDOK: true},
		{path: "/api/invoices//items"},
		{path: "/api/invoices/"},
		{path: "/api/invoices/a/b/items"},
		{path: "/api/invoices/a/b"},
		{path: "/api/invoices"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			params, ok := invoiceItems(tc.path)
			require.Equal(t, tc.itemOK, ok)
			if ok {
				require.Equal(t, []string{tc.items}, params)
			}
			params, ok = invoiceByID(tc.path)
			require.Equal(t, tc.byIDOK, ok)
			if ok {
				require.Equal(t, []string{tc.byID}, params)
			}
		})
	}
}

func TestItemsRouteDeclaredBeforeSingleInvoice(t *testing.T) {
	rt, err := NewRouter(Config{Service: newTestService(t)})
	require.NoError(t, err)

	routes := rt.Routes()
	itemsAt, getAt := -1, -1
	for i, r := range routes {
		switch r {
		case "POST /api/invoices/{id}/items":
			itemsAt = i
		case "GET /api/invoices/{id}":
			getAt = i
		}
	}
	require.NotEqual(t, -1, itemsAt)
	require.NotEqual(t, -1, getAt)
	require.Less(t, itemsAt, getAt)
}

func TestMethodMismatchIsNotFound(t *testing.T) {
	rt, err := NewRouter(Config{Service: newTestService(t)})
	require.NoError(t, err)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/customers"},
		{http.MethodGet, "/api/invoices/abc/items"},
		{http.MethodPut, "/api/invoices/abc"},
		{http.MethodGet, "/api/customers/"},
	} {
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		require.JSONEq(t, `{"error":"Not found","code":"ROUTE_NOT_FOUND"}`, rec.Body.String())
	}
}

func TestPayloadCoercion(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":42,"phone":true,"qty":"3","unit_price":null,"bad":"x"}`))
	p := readPayload(req)
	require.Equal(t, "42", p.String("name"))
	require.Empty(t, p.String("phone"))
	require.Empty(t, p.String("missing"))

	qty, err := p.Number("qty")
	require.NoError(t, err)
	require.Equal(t, 3.0, *qty)

	price, err := p.Number("unit_price")
	require.NoError(t, err)
	require.Nil(t, price)

	_, err = p.Number("bad")
	require.EqualError(t, err, "bad must be a number")

	for _, body := range []string{"", "not json", "[1,2]", "null", `"text"`} {
		p := readPayload(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		require.Empty(t, p, body)
	}
}
