package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

// PGXTracer implements pgx.QueryTracer, opening one client span per query.
type PGXTracer struct{}

type querySpanKey struct{}

// TraceQueryStart starts a span named after the statement's verb.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	verb := statementVerb(data.SQL)
	name := "pgx.query"
	if verb != "" {
		name = "pgx." + strings.ToLower(verb)
	}
	attrs := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		semconv.DBQueryTextKey.String(clip(data.SQL, maxStatementLen)),
		attribute.Int("db.query.args", len(data.Args)),
	}
	if verb != "" {
		attrs = append(attrs, semconv.DBOperationNameKey.String(verb))
	}
	ctx, span := otel.Tracer("github.com/noah-isme/invoice-api/store").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return context.WithValue(ctx, querySpanKey{}, span)
}

// TraceQueryEnd records rows affected and any error other than pgx.ErrNoRows.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	if data.Err != nil && !errors.Is(data.Err, pgx.ErrNoRows) {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
}

func statementVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexFunc(sql, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' || r == '(' }); i >= 0 {
		sql = sql[:i]
	}
	return strings.ToUpper(sql)
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
