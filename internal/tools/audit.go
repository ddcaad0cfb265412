package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dinehall/dinehall/gateway/pkg/contracts"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// AuditedBackend decorates a Backend with audit logging and tracing.
// ExecuteTool is the single chokepoint every wrapper funnels through,
// which is what makes this decoration complete: no tool call can reach
// the platform without an audit line and a span.
type AuditedBackend struct {
	next   contracts.Backend
	tracer trace.Tracer
}

// NewAuditedBackend wraps a backend client with auditing.
func NewAuditedBackend(next contracts.Backend) *AuditedBackend {
	return &AuditedBackend{
		next:   next,
		tracer: otel.Tracer("dinehall/gateway/tools"),
	}
}

// ExecuteTool records the call, runs it, and records the outcome. Input
// payloads are logged by size only: they contain user text.
func (b *AuditedBackend) ExecuteTool(ctx context.Context, toolName string, input json.RawMessage, cc models.ClientContext) (json.RawMessage, error) {
	ctx, span := b.tracer.Start(ctx, "backend.execute_tool",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("tenant.id", cc.TenantID),
			attribute.String("request.id", cc.RequestID),
		))
	defer span.End()

	start := time.Now()
	out, err := b.next.ExecuteTool(ctx, toolName, input, cc)
	elapsed := time.Since(start)

	event := log.Info()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		event = log.Warn().Err(err)
	}
	event.
		Str("tool", toolName).
		Str("tenant", cc.TenantID).
		Str("request", cc.RequestID).
		Int("input_bytes", len(input)).
		Dur("elapsed", elapsed).
		Msg("tool executed")

	return out, err
}
