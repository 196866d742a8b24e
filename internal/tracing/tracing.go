// Package tracing provides a lightweight, context-propagated span model for
// the orchestrator's turn loop and the provider chain's model calls. It
// replaces the full go.opentelemetry.io/otel SDK: a single process with one
// log sink has no exporter/collector topology to drive, so spans are just
// structured log records carrying a trace id and a parent span id, matching
// the correlation-id convention internal/config's logging already uses.
//
// Grounded on the context-key trace-id pattern found in the retrieved pack's
// gateway/internal/domain/service/trace.go (private context-key struct,
// WithX/XFromContext accessors, crypto/rand-generated ids), generalized with
// a minimal Span shape so a turn's nested llm_call/tool_call spans can be
// correlated and timed.
package tracing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span is one timed unit of work within a turn: the whole turn itself, one
// round's model call, or one tool invocation.
type Span struct {
	TraceID      uuid.UUID
	SpanID       uuid.UUID
	ParentSpanID uuid.UUID
	Type         string // "turn", "llm_call", "tool_call"
	Name         string
	StartTime    time.Time
	EndTime      time.Time
	DurationMS   int64
	Status       string // "ok" or "error"
	Error        string
	Model        string
	Provider     string
}

// Collector receives finished spans. SlogCollector is the only implementation
// this module ships; callers needing a real trace backend can satisfy this
// interface with their own.
type Collector interface {
	EmitSpan(span Span)
}

// SlogCollector renders spans as structured log lines.
type SlogCollector struct {
	log *slog.Logger
}

// NewSlogCollector builds a Collector that logs through log, or slog.Default
// if log is nil.
func NewSlogCollector(log *slog.Logger) *SlogCollector {
	if log == nil {
		log = slog.Default()
	}
	return &SlogCollector{log: log.With("component", "tracing")}
}

// EmitSpan logs the span at Debug, or Warn when it ended in error.
func (s *SlogCollector) EmitSpan(span Span) {
	attrs := []any{
		"trace_id", span.TraceID.String(),
		"span_id", span.SpanID.String(),
		"type", span.Type,
		"name", span.Name,
		"duration_ms", span.DurationMS,
		"status", span.Status,
	}
	if span.ParentSpanID != uuid.Nil {
		attrs = append(attrs, "parent_span_id", span.ParentSpanID.String())
	}
	if span.Model != "" {
		attrs = append(attrs, "model", span.Model, "provider", span.Provider)
	}
	if span.Error != "" {
		attrs = append(attrs, "error", span.Error)
		s.log.Warn("span", attrs...)
		return
	}
	s.log.Debug("span", attrs...)
}

type (
	traceIDKey      struct{}
	collectorKey    struct{}
	parentSpanIDKey struct{}
)

// WithTraceID installs a trace id on ctx, generating one if traceID is nil.
func WithTraceID(ctx context.Context, traceID uuid.UUID) context.Context {
	if traceID == uuid.Nil {
		traceID = uuid.New()
	}
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace id installed on ctx, or uuid.Nil if
// none was installed (tracing inactive for this context).
func TraceIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(traceIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithCollector installs the Collector spans started from ctx will emit to.
func WithCollector(ctx context.Context, c Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFromContext returns the Collector installed on ctx, or nil.
func CollectorFromContext(ctx context.Context) Collector {
	c, _ := ctx.Value(collectorKey{}).(Collector)
	return c
}

func withParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, parentSpanIDKey{}, id)
}

// ParentSpanIDFromContext returns the span id a new span started from ctx
// should record as its parent, or uuid.Nil at the root of a turn.
func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(parentSpanIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// Active is a span in progress, returned by Start and finished with End.
type Active struct {
	span      Span
	collector Collector
}

// Start begins a span of the given type/name under ctx's trace id and parent
// span. The returned context carries this span as the parent for any further
// nested Start calls (e.g. tool_call spans nested under a turn span).
func Start(ctx context.Context, spanType, name string) (context.Context, *Active) {
	a := &Active{
		span: Span{
			TraceID:      TraceIDFromContext(ctx),
			SpanID:       uuid.New(),
			ParentSpanID: ParentSpanIDFromContext(ctx),
			Type:         spanType,
			Name:         name,
			StartTime:    time.Now(),
		},
		collector: CollectorFromContext(ctx),
	}
	return withParentSpanID(ctx, a.span.SpanID), a
}

// WithModel records the model/provider an llm_call span ran against.
func (a *Active) WithModel(model, provider string) *Active {
	a.span.Model = model
	a.span.Provider = provider
	return a
}

// End finishes the span and emits it, a no-op when tracing is inactive (no
// collector installed, or no trace id for this context).
func (a *Active) End(err error) {
	if a == nil || a.collector == nil || a.span.TraceID == uuid.Nil {
		return
	}
	a.span.EndTime = time.Now()
	a.span.DurationMS = a.span.EndTime.Sub(a.span.StartTime).Milliseconds()
	a.span.Status = "ok"
	if err != nil {
		a.span.Status = "error"
		a.span.Error = err.Error()
	}
	a.collector.EmitSpan(a.span)
}
