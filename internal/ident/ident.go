package ident

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

const (
	// TimestampLayout is the fixed ISO-8601 format stored in created_at columns.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
	// DateLayout is the calendar date format used for invoice and due dates.
	DateLayout = "2006-01-02"
)

// Generator produces record identifiers, timestamps and invoice numbers.
// The zero value is ready to use; fields may be overridden in tests.
type Generator struct {
	Clock func() time.Time
	IDs   func() string
	Intn  func(n int) int
}

// NewID returns a new random UUID string.
func (g Generator) NewID() string {
	if g.IDs != nil {
		return g.IDs()
	}
	return uuid.NewString()
}

// Now returns the current instant formatted with TimestampLayout in UTC.
func (g Generator) Now() string {
	return g.now().Format(TimestampLayout)
}

// Today returns the current UTC calendar date.
func (g Generator) Today() string {
	return g.DateOffset(0)
}

// DateOffset returns the UTC calendar date the given number of days from now.
func (g Generator) DateOffset(days int) string {
	return g.now().Add(time.Duration(days) * 24 * time.Hour).Format(DateLayout)
}

// InvoiceNumber returns a number of the form INV-<year>-<1000..9999>.
func (g Generator) InvoiceNumber() string {
	return fmt.Sprintf("INV-%d-%d", g.now().Year(), 1000+g.intn(9000))
}

func (g Generator) now() time.Time {
	if g.Clock != nil {
		return g.Clock().UTC()
	}
	return time.Now().UTC()
}

func (g Generator) intn(n int) int {
	if g.Intn != nil {
		return g.Intn(n)
	}
	return rand.IntN(n)
}
