package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ksuena0213/open-loyalty-framework/domain"
)

const (
	instrumentationName = "github.com/ksuena0213/open-loyalty-framework"
	projectionSpanName  = "readmodel.project"
	projectionEventName = "readmodel.projection"
	observabilityEvent  = "observability.event"
)

// Outcomes of a processed event.
const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// projectionTrace spans the handling of one event and logs a summary entry
// when it ends.
type projectionTrace struct {
	logger *log.Logger
	span   trace.Span
	ev     domain.Event
	start  time.Time
}

func startProjection(ctx context.Context, logger *log.Logger, ev domain.Event) (context.Context, *projectionTrace) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, projectionSpanName,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type),
			attribute.String("entity.type", ev.EntityType),
			attribute.String("entity.id", ev.EntityID),
		),
	)
	return ctx, &projectionTrace{logger: logger, span: span, ev: ev, start: time.Now()}
}

func (t *projectionTrace) End(outcome string, err error) {
	elapsed := float64(time.Since(t.start)) / float64(time.Millisecond)
	t.span.SetAttributes(
		attribute.String("loyalty.projection.outcome", outcome),
		attribute.Float64("loyalty.projection.total_ms", elapsed),
	)
	if err != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	} else {
		t.span.SetStatus(codes.Ok, "")
	}
	sc := t.span.SpanContext()
	t.span.End()

	if t.logger == nil {
		return
	}
	entry := t.logger.WithFields(log.Fields{
		"event.name": projectionEventName,
		"event.id":   t.ev.ID,
		"event.type": t.ev.Type,
		"entity.id":  t.ev.EntityID,
		"outcome":    outcome,
		"total_ms":   elapsed,
	})
	if sc.IsValid() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}
	if err != nil {
		entry.WithError(err).Error(observabilityEvent)
		return
	}
	entry.Debug(observabilityEvent)
}
