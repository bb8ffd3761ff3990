package api

import (
	"errors"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/invoice-api/internal/common"
	"github.com/noah-isme/invoice-api/internal/invoicing"
)

type createCustomerRequest struct {
	Name           string `json:"name" validate:"required"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	ServiceAddress string `json:"service_address"`
	Notes          string `json:"notes"`
}

type createInvoiceRequest struct {
	CustomerID    string `json:"customer_id" validate:"required"`
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	DueDate       string `json:"due_date"`
}

type addItemRequest struct {
	Description string   `json:"description" validate:"required"`
	Qty         *float64 `json:"qty"`
	UnitPrice   *float64 `json:"unit_price"`
}

// requiredMessages maps a field's JSON name to the message returned when it
// is missing.
var requiredMessages = map[string]string{
	"name":        "Name required",
	"customer_id": "customer_id required",
	"description": "description required",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validate runs struct validation and converts the first failure into a
// validation AppError.
func validate(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return common.Internal(err)
	}
	fe := fieldErrs[0]
	if msg, ok := requiredMessages[fe.Field()]; ok && fe.Tag() == "required" {
		return common.Validation(msg)
	}
	return common.Validation(fe.Field() + " is invalid")
}

func decodeCustomer(p payload) createCustomerRequest {
	return createCustomerRequest{
		Name:           strings.TrimSpace(p.String("name")),
		Phone:          p.String("phone"),
		Email:          p.String("email"),
		ServiceAddress: p.String("service_address"),
		Notes:          p.String("notes"),
	}
}

func decodeInvoice(p payload) createInvoiceRequest {
	return createInvoiceRequest{
		CustomerID:    strings.TrimSpace(p.String("customer_id")),
		InvoiceNumber: p.String("invoice_number"),
		InvoiceDate:   p.String("invoice_date"),
		DueDate:       p.String("due_date"),
	}
}

func decodeItem(p payload) (addItemRequest, error) {
	req := addItemRequest{Description: strings.TrimSpace(p.String("description"))}
	var err error
	if req.Qty, err = p.Number("qty"); err != nil {
		return req, common.Validation(err.Error())
	}
	if req.UnitPrice, err = p.Number("unit_price"); err != nil {
		return req, common.Validation(err.Error())
	}
	return req, nil
}

func (r createCustomerRequest) input() invoicing.CustomerInput {
	return invoicing.CustomerInput{
		Name:           r.Name,
		Phone:          r.Phone,
		Email:          r.Email,
		ServiceAddress: r.ServiceAddress,
		Notes:          r.Notes,
	}
}

func (r createInvoiceRequest) input() invoicing.InvoiceInput {
	return invoicing.InvoiceInput{
		CustomerID:    r.CustomerID,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceDate:   r.InvoiceDate,
		DueDate:       r.DueDate,
	}
}

func (r addItemRequest) input() invoicing.ItemInput {
	return invoicing.ItemInput{
		Description: r.Description,
		Qty:         r.Qty,
		UnitPrice:   r.UnitPrice,
	}
}
