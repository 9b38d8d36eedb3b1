package telemetry

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"

	maxStatementLen = 500
)

// GORMTracingPlugin returns a GORM plugin that opens a span per statement
func GORMTracingPlugin() gorm.Plugin {
	return &tracingPlugin{tracer: otel.Tracer("gorm")}
}

type tracingPlugin struct {
	tracer trace.Tracer
}

func (p *tracingPlugin) Name() string {
	return "telemetry:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	type hook struct {
		name     string
		register func(name string, fn func(*gorm.DB)) error
	}

	cb := db.Callback()
	before := []struct {
		op  string
		reg func(string, func(*gorm.DB)) error
	}{
		{"SELECT", cb.Query().Before("gorm:query").Register},
		{"INSERT", cb.Create().Before("gorm:create").Register},
		{"UPDATE", cb.Update().Before("gorm:update").Register},
		{"DELETE", cb.Delete().Before("gorm:delete").Register},
		{"RAW", cb.Raw().Before("gorm:raw").Register},
	}
	for _, b := range before {
		op := b.op
		if err := b.reg("telemetry:before_"+strings.ToLower(op), func(tx *gorm.DB) { p.startSpan(tx, op) }); err != nil {
			return fmt.Errorf("failed to register before_%s callback: %w", strings.ToLower(op), err)
		}
	}

	after := []hook{
		{"query", cb.Query().After("gorm:query").Register},
		{"create", cb.Create().After("gorm:create").Register},
		{"update", cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().After("gorm:raw").Register},
	}
	for _, a := range after {
		if err := a.register("telemetry:after_"+a.name, p.endSpan); err != nil {
			return fmt.Errorf("failed to register after_%s callback: %w", a.name, err)
		}
	}

	return nil
}

func (p *tracingPlugin) startSpan(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}

	_, span := p.tracer.Start(ctx, "db."+strings.ToLower(operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(dbSystemKey, db.Dialector.Name()),
			attribute.String(dbTableKey, table),
			attribute.String(dbOperationKey, operation),
		),
	)

	db.InstanceSet("otel:span", span)
	db.InstanceSet("otel:startTime", time.Now())
}

func (p *tracingPlugin) endSpan(db *gorm.DB) {
	raw, ok := db.InstanceGet("otel:span")
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if v, ok := db.InstanceGet("otel:startTime"); ok {
		if started, ok := v.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(started).Milliseconds()))
		}
	}

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLen {
			sql = sql[:maxStatementLen] + "... (truncated)"
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}

	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
