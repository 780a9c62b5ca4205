package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementAttr = 300

type pgxSpanKey struct{}

// PGXTracer emits one span per SQL statement via pgx's QueryTracer
// hook. Assign it to pgxpool.Config.ConnConfig.Tracer.
type PGXTracer struct{}

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, span := otel.Tracer("db.pgx").Start(ctx, "pgx.query")
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", clipStatement(data.SQL)),
	}
	if op := statementVerb(data.SQL); op != "" {
		attrs = append(attrs, attribute.String("db.operation", op))
	}
	span.SetAttributes(attrs...)
	return context.WithValue(ctx, pgxSpanKey{}, span)
}

func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(pgxSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if data.Err != nil {
		span.RecordError(data.Err)
	}
	span.End()
}

// statementVerb extracts the leading SQL keyword for the operation
// attribute.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func clipStatement(sql string) string {
	sql = strings.TrimSpace(sql)
	if len(sql) <= maxStatementAttr {
		return sql
	}
	return sql[:maxStatementAttr] + "..."
}
