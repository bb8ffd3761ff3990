// Command seeder populates a running invoice API with demo customers,
// invoices and line items through its public HTTP interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-api/internal/client"
	"github.com/noah-isme/invoice-api/internal/obs"
	"github.com/noah-isme/invoice-api/internal/pricing"
	"github.com/noah-isme/invoice-api/internal/resilience"
)

type demoInvoice struct {
	number string
	date   string
	due    string
	items  []client.NewItem
}

type demoCustomer struct {
	customer client.NewCustomer
	invoices []demoInvoice
}

var demo = []demoCustomer{
	{
		customer: client.NewCustomer{Name: "Budi Santoso", Email: "budi@example.com", Phone: "0812-5550-101", ServiceAddress: "Jl. Melati 12, Bandung"},
		invoices: []demoInvoice{{
			number: "INV-0001", date: "2026-01-05", due: "2026-01-19",
			items: []client.NewItem{
				{Description: "AC service", Qty: client.Float(1), UnitPrice: client.Float(350)},
				{Description: "Freon refill", Qty: client.Float(2), UnitPrice: client.Float(125.5)},
			},
		}},
	},
	{
		customer: client.NewCustomer{Name: "Siti Aminah", Email: "siti@example.com", Notes: "Call before arrival"},
		invoices: []demoInvoice{
			{
				number: "INV-0002", date: "2026-01-12",
				items: []client.NewItem{{Description: "Plumbing inspection", UnitPrice: client.Float(90)}},
			},
			{
				number: "INV-0003", date: "2026-02-02", due: "2026-02-16",
				items: []client.NewItem{
					{Description: "Pipe replacement", Qty: client.Float(3), UnitPrice: client.Float(42.25)},
					{Description: "Labour (hours)", Qty: client.Float(1.5), UnitPrice: client.Float(60)},
				},
			},
		},
	},
	{
		customer: client.NewCustomer{Name: "Andi Pratama", Phone: "0813-5550-202"},
	},
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	baseURL := flag.String("base-url", envOr("SEED_BASE_URL", "http://localhost:8080"), "invoice API base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	logger := obs.NewLogger(envOr("OBS_LOG_FORMAT", "console"), os.Getenv("OBS_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	breaker := resilience.NewBreaker(5, 0.5, 5*time.Second).WithTarget("invoice-api").WithLogger(logger)
	api, err := client.New(client.Config{
		BaseURL:     *baseURL,
		Timeout:     *timeout,
		MaxAttempts: 3,
		Breaker:     breaker,
		Idempotent:  true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build client")
	}

	if err := seed(ctx, api, logger); err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}
	logger.Info().Msg("seeding completed")
}

func seed(ctx context.Context, api *client.Client, logger zerolog.Logger) error {
	for _, dc := range demo {
		customerID, err := api.CreateCustomer(ctx, dc.customer)
		if err != nil {
			return fmt.Errorf("create customer %q: %w", dc.customer.Name, err)
		}
		logger.Info().Str("customer_id", customerID).Str("name", dc.customer.Name).Msg("customer created")

		for _, di := range dc.invoices {
			invoiceID, err := api.CreateInvoice(ctx, client.NewInvoice{
				CustomerID:    customerID,
				InvoiceNumber: di.number,
				InvoiceDate:   di.date,
				DueDate:       di.due,
			})
			if err != nil {
				return fmt.Errorf("create invoice %s: %w", di.number, err)
			}
			for _, item := range di.items {
				if _, err := api.AddItem(ctx, invoiceID, item); err != nil {
					return fmt.Errorf("add item %q to %s: %w", item.Description, di.number, err)
				}
			}
			detail, err := api.GetInvoice(ctx, invoiceID)
			if err != nil {
				return fmt.Errorf("read invoice %s: %w", di.number, err)
			}
			logger.Info().
				Str("invoice_id", invoiceID).
				Str("number", detail.Invoice.InvoiceNumber).
				Int("items", len(detail.Items)).
				Str("subtotal", pricing.Format(detail.Totals.SubtotalCents)).
				Str("total", pricing.Format(detail.Totals.TotalCents)).
				Msg("invoice seeded")
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
