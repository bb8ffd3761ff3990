// Package api exposes the invoicing operations as a JSON HTTP API.
package api

import (
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-api/internal/common"
	"github.com/noah-isme/invoice-api/internal/invoicing"
	"github.com/noah-isme/invoice-api/internal/obs"
)

const invoicesPrefix = "/api/invoices/"

// matcher reports whether a request path matches and returns the path
// segments captured as parameters.
type matcher func(path string) ([]string, bool)

type handlerFunc func(w http.ResponseWriter, r *http.Request, params []string)

type route struct {
	name    string
	method  string
	pattern string
	match   matcher
	handle  handlerFunc
}

// Router dispatches requests through an ordered route table. The first route
// whose method and path both match handles the request.
type Router struct {
	routes   []route
	service  *invoicing.Service
	validate *validator.Validate
	logger   zerolog.Logger
	metrics  *obs.DomainMetrics
}

// Config configures a Router.
type Config struct {
	Service *invoicing.Service
	Logger  zerolog.Logger
	Metrics *obs.DomainMetrics
}

// NewRouter constructs the API router.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Service == nil {
		return nil, errors.New("api: service is required")
	}
	rt := &Router{
		service:  cfg.Service,
		validate: newValidator(),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	// The items route must precede the single invoice route.
	rt.routes = []route{
		{name: "listCustomers", method: http.MethodGet, pattern: "/api/customers", match: exact("/api/customers"), handle: rt.listCustomers},
		{name: "createCustomer", method: http.MethodPost, pattern: "/api/customers", match: exact("/api/customers"), handle: rt.createCustomer},
		{name: "listInvoices", method: http.MethodGet, pattern: "/api/invoices", match: exact("/api/invoices"), handle: rt.listInvoices},
		{name: "createInvoice", method: http.MethodPost, pattern: "/api/invoices", match: exact("/api/invoices"), handle: rt.createInvoice},
		{name: "addInvoiceItem", method: http.MethodPost, pattern: "/api/invoices/{id}/items", match: invoiceItems, handle: rt.addItem},
		{name: "getInvoice", method: http.MethodGet, pattern: "/api/invoices/{id}", match: invoiceByID, handle: rt.getInvoice},
	}
	return rt, nil
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	for _, route := range rt.routes {
		if route.method != r.Method {
			continue
		}
		params, ok := route.match(path)
		if !ok {
			continue
		}
		obs.SetRoutePattern(r.Context(), route.pattern)
		route.handle(w, r, params)
		return
	}
	rt.NotFound(w, r)
}

// NotFound renders the 404 returned for any request no route matches.
func (rt *Router) NotFound(w http.ResponseWriter, r *http.Request) {
	rt.writeError(w, r, common.RouteNotFound())
}

// Routes lists the table as "METHOD pattern" entries in match order.
func (rt *Router) Routes() []string {
	out := make([]string, 0, len(rt.routes))
	for _, route := range rt.routes {
		out = append(out, route.method+" "+route.pattern)
	}
	return out
}

func exact(want string) matcher {
	return func(path string) ([]string, bool) {
		return nil, path == want
	}
}

// invoiceItems matches /api/invoices/{id}/items.
func invoiceItems(path string) ([]string, bool) {
	rest, ok := strings.CutPrefix(path, invoicesPrefix)
	if !ok {
		return nil, false
	}
	id, ok := strings.CutSuffix(rest, "/items")
	if !ok || id == "" || strings.Contains(id, "/") {
		return nil, false
	}
	return []string{id}, true
}

// invoiceByID matches /api/invoices/{id}.
func invoiceByID(path string) ([]string, bool) {
	if !strings.HasPrefix(path, invoicesPrefix) {
		return nil, false
	}
	id := strings.TrimPrefix(path, invoicesPrefix)
	if id == "" || strings.Contains(id, "/") {
		return nil, false
	}
	return []string{id}, true
}
