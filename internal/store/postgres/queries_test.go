package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-api/internal/invoicing"
)

// dbStub records every statement and answers from canned rows.
type dbStub struct {
	sql  []string
	args [][]any

	rows    [][]any
	row     []any
	rowErr  error
	execErr error
}

func (d *dbStub) record(sql string, args []any) {
	d.sql = append(d.sql, sql)
	d.args = append(d.args, args)
}

func (d *dbStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.record(sql, args)
	return pgconn.NewCommandTag("INSERT 0 1"), d.execErr
}

func (d *dbStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.record(sql, args)
	return &stubRows{values: d.rows, at: -1}, nil
}

func (d *dbStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.record(sql, args)
	return stubRow{values: d.row, err: d.rowErr}
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type stubRows struct {
	values [][]any
	at     int
	closed bool
}

func (r *stubRows) Close() { r.closed = true }
func (r *stubRows) Err() error { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Conn() *pgx.Conn { return nil }

func (r *stubRows) Next() bool {
	if r.closed || r.at+1 >= len(r.values) {
		return false
	}
	r.at++
	return true
}

func (r *stubRows) Scan(dest ...any) error { return assign(dest, r.values[r.at]) }

func (r *stubRows) Values() ([]any, error) { return r.values[r.at], nil }

// assign copies values into dest positionally and rejects type or arity drift.
func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(values))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		v := reflect.ValueOf(values[i])
		if v.Type() != target.Type() {
			return fmt.Errorf("scan: column %d is %s, destination is %s", i, v.Type(), target.Type())
		}
		target.Set(v)
	}
	return nil
}

func customerRow(id, name string) []any {
	return []any{id, name, "0812", name + "@example.com", "Jl. Melati 12", "", "2025-03-01T10:00:00.000Z"}
}

func TestListCustomersBindsLimit(t *testing.T) {
	db := &dbStub{rows: [][]any{customerRow("c2", "Siti"), customerRow("c1", "Budi")}}
	st := &Store{db: db}

	got, err := st.ListCustomers(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, db.sql, 1)
	require.Contains(t, db.sql[0], "ORDER BY created_at DESC, seq DESC")
	require.Contains(t, db.sql[0], "LIMIT $1")
	require.NotContains(t, db.sql[0], "ILIKE")
	require.Equal(t, []any{invoicing.ListLimit}, db.args[0])

	require.Len(t, got, 2)
	require.Equal(t, invoicing.Customer{
		ID: "c2", Name: "Siti", Phone: "0812", Email: "Siti@example.com",
		ServiceAddress: "Jl. Melati 12", CreatedAt: "2025-03-01T10:00:00.000Z",
	}, got[0])
	require.Equal(t, "c1", got[1].ID)
}

func TestListCustomersFilterReusesPattern(t *testing.T) {
	db := &dbStub{}
	st := &Store{db: db}

	got, err := st.ListCustomers(context.Background(), "50%_off")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	sql := db.sql[0]
	require.Equal(t, 4, strings.Count(sql, "ILIKE $1"))
	for _, col := range []string{"name", "phone", "email", "service_address"} {
		require.Contains(t, sql, col+" ILIKE $1")
	}
	require.Contains(t, sql, "LIMIT $2")
	require.Equal(t, []any{invoicing.ContainsPattern("50%_off"), invoicing.ListLimit}, db.args[0])
}

func TestListInvoicesScansJoinedName(t *testing.T) {
	db := &dbStub{rows: [][]any{{"i1", "c1", "INV-2025-1234", "2025-03-01", "2025-03-15", "Draft", int64(0), "2025-03-01T10:00:00.000Z", "Budi"}}}
	st := &Store{db: db}

	got, err := st.ListInvoices(context.Background())
	require.NoError(t, err)
	require.Contains(t, db.sql[0], "ORDER BY i.created_at DESC, i.seq DESC")
	require.Equal(t, []any{invoicing.ListLimit}, db.args[0])
	require.Equal(t, []invoicing.Invoice{{
		ID: "i1", CustomerID: "c1", InvoiceNumber: "INV-2025-1234", InvoiceDate: "2025-03-01",
		DueDate: "2025-03-15", Status: "Draft", CreatedAt: "2025-03-01T10:00:00.000Z", CustomerName: "Budi",
	}}, got)
}

func TestGetInvoiceScanOrder(t *testing.T) {
	db := &dbStub{row: []any{"i1", "c1", "INV-2025-1234", "2025-03-01", "2025-03-15", "Draft", int64(150), "2025-03-01T10:00:00.000Z", "Budi", "budi@example.com"}}
	st := &Store{db: db}

	got, err := st.GetInvoice(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, []any{"i1"}, db.args[0])
	require.Equal(t, invoicing.Invoice{
		ID: "i1", CustomerID: "c1", InvoiceNumber: "INV-2025-1234", InvoiceDate: "2025-03-01",
		DueDate: "2025-03-15", Status: "Draft", TaxCents: 150, CreatedAt: "2025-03-01T10:00:00.000Z",
		CustomerName: "Budi", CustomerEmail: "budi@example.com",
	}, got)
}

func TestMissingRowsMapToNotFound(t *testing.T) {
	st := &Store{db: &dbStub{rowErr: pgx.ErrNoRows}}

	_, err := st.GetInvoice(context.Background(), "nope")
	require.ErrorIs(t, err, invoicing.ErrNotFound)
	_, err = st.GetInvoiceTax(context.Background(), "nope")
	require.ErrorIs(t, err, invoicing.ErrNotFound)

	broken := errors.New("conn closed")
	st = &Store{db: &dbStub{rowErr: broken}}
	_, err = st.GetInvoice(context.Background(), "i1")
	require.ErrorIs(t, err, broken)
	_, err = st.GetInvoiceTax(context.Background(), "i1")
	require.ErrorIs(t, err, broken)
	require.NotErrorIs(t, err, invoicing.ErrNotFound)
}

func TestGetInvoiceTax(t *testing.T) {
	db := &dbStub{row: []any{int64(275)}}
	tax, err := (&Store{db: db}).GetInvoiceTax(context.Background(), "i1")
	require.NoError(t, err)
	require.Equal(t, int64(275), tax)
	require.Equal(t, []any{"i1"}, db.args[0])
}

func TestListInvoiceItemsAscending(t *testing.T) {
	db := &dbStub{rows: [][]any{
		{"it1", "i1", "Call-out", 1.0, int64(2500), "2025-03-01T10:00:00.000Z"},
		{"it2", "i1", "Hours", 1.5, int64(4000), "2025-03-01T10:00:00.000Z"},
	}}
	got, err := (&Store{db: db}).ListInvoiceItems(context.Background(), "i1")
	require.NoError(t, err)
	require.Contains(t, db.sql[0], "ORDER BY created_at ASC, seq ASC")
	require.Equal(t, []any{"i1"}, db.args[0])
	require.Len(t, got, 2)
	require.Equal(t, "it1", got[0].ID)
	require.Equal(t, invoicing.InvoiceItem{
		ID: "it2", InvoiceID: "i1", Description: "Hours", Qty: 1.5, UnitPriceCents: 4000, CreatedAt: "2025-03-01T10:00:00.000Z",
	}, got[1])
}

func TestInsertsBindColumnsInOrder(t *testing.T) {
	db := &dbStub{}
	st := &Store{db: db}
	ctx := context.Background()

	require.NoError(t, st.InsertCustomer(ctx, invoicing.Customer{ID: "c1", Name: "Budi", Phone: "p", Email: "e", ServiceAddress: "a", Notes: "n", CreatedAt: "t"}))
	require.Equal(t, []any{"c1", "Budi", "p", "e", "a", "n", "t"}, db.args[0])

	require.NoError(t, st.InsertInvoice(ctx, invoicing.Invoice{ID: "i1", CustomerID: "c1", InvoiceNumber: "INV-2025-1000", InvoiceDate: "d", DueDate: "dd", Status: "Draft", CreatedAt: "t"}))
	require.Equal(t, []any{"i1", "c1", "INV-2025-1000", "d", "dd", "Draft", int64(0), "t"}, db.args[1])

	require.NoError(t, st.InsertInvoiceItem(ctx, invoicing.InvoiceItem{ID: "it1", InvoiceID: "i1", Description: "Hours", Qty: 2, UnitPriceCents: 4000, CreatedAt: "t"}))
	require.Equal(t, []any{"it1", "i1", "Hours", 2.0, int64(4000), "t"}, db.args[2])
}

func TestInsertItemForeignKey(t *testing.T) {
	db := &dbStub{execErr: &pgconn.PgError{Code: foreignKeyViolation, ConstraintName: "invoice_items_invoice_id_fkey"}}
	err := (&Store{db: db}).InsertInvoiceItem(context.Background(), invoicing.InvoiceItem{ID: "it1", InvoiceID: "missing"})
	require.ErrorIs(t, err, invoicing.ErrReferenceMissing)
}
