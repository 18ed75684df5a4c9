package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/ksuena0213/open-loyalty-framework/api"
	requestSpanName     = "readmodel.request"
	requestEventName    = "readmodel.request.metrics"
	requestEventDomain  = "loyalty.readmodel"
	observabilityEvent  = "observability.event"
)

// requestMetrics times one query request. Log ends the span it opened and
// writes a single observability entry.
type requestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	route         string
	start         time.Time
	fetchDuration time.Duration
	rowsReturned  int
	errorStage    string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	return &requestMetrics{logger: logger, span: span, route: route, start: time.Now()}, ctx
}

func (m *requestMetrics) ObserveFetch(d time.Duration) {
	if d <= 0 {
		return
	}
	m.fetchDuration = d
}

func (m *requestMetrics) SetRowsReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.rowsReturned = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForStatus(status, err)
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("loyalty.request.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("loyalty.request.rows_returned", m.rowsReturned),
	}
	if m.fetchDuration > 0 {
		attrs = append(attrs, attribute.Float64("loyalty.request.fetch_ms", durationToMillis(m.fetchDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("loyalty.request.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", requestEventName),
			attribute.String("event.domain", requestEventDomain),
			attribute.String("severity_text", severityText),
		}, attrs...)
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
		switch {
		case err != nil:
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			m.span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		defer m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attributesToFields(attrs),
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	m.logger.WithFields(fields).Info(observabilityEvent)
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	}
	return "INFO", 9
}

func attributesToFields(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
