package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/invoice-api/internal/common"
	"github.com/noah-isme/invoice-api/internal/obs"
)

type createdResponse struct {
	ID string `json:"id"`
}

// listCustomers handles GET /api/customers.
func (rt *Router) listCustomers(w http.ResponseWriter, r *http.Request, _ []string) {
	rows, err := rt.service.ListCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, rows)
}

// createCustomer handles POST /api/customers.
func (rt *Router) createCustomer(w http.ResponseWriter, r *http.Request, _ []string) {
	req := decodeCustomer(readPayload(r))
	if err := validate(rt.validate, req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	id, err := rt.service.CreateCustomer(r.Context(), req.input())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.RecordCreated("customer")
	common.JSON(w, http.StatusOK, createdResponse{ID: id})
}

// listInvoices handles GET /api/invoices.
func (rt *Router) listInvoices(w http.ResponseWriter, r *http.Request, _ []string) {
	rows, err := rt.service.ListInvoices(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, rows)
}

// createInvoice handles POST /api/invoices.
func (rt *Router) createInvoice(w http.ResponseWriter, r *http.Request, _ []string) {
	req := decodeInvoice(readPayload(r))
	if err := validate(rt.validate, req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	id, err := rt.service.CreateInvoice(r.Context(), req.input())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.RecordCreated("invoice")
	common.JSON(w, http.StatusOK, createdResponse{ID: id})
}

// addItem handles POST /api/invoices/{id}/items.
func (rt *Router) addItem(w http.ResponseWriter, r *http.Request, params []string) {
	req, numErr := decodeItem(readPayload(r))
	if err := validate(rt.validate, req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if numErr != nil {
		rt.writeError(w, r, numErr)
		return
	}
	id, err := rt.service.AddItem(r.Context(), params[0], req.input())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.RecordCreated("invoice_item")
	common.JSON(w, http.StatusOK, createdResponse{ID: id})
}

// getInvoice handles GET /api/invoices/{id}.
func (rt *Router) getInvoice(w http.ResponseWriter, r *http.Request, params []string) {
	detail, err := rt.service.GetInvoiceDetail(r.Context(), params[0])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	rt.metrics.TotalsComputedInc()
	common.JSON(w, http.StatusOK, detail)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := common.AsAppError(err)
	switch appErr.Kind {
	case common.KindInternal:
		rt.logger.Error().
			Err(appErr.Err).
			Str("route", obs.RoutePatternFromContext(r.Context())).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	case common.KindValidation:
		rt.metrics.ValidationFailed(obs.RoutePatternFromContext(r.Context()))
	}
	common.WriteAppError(w, appErr)
}
