package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for render operations.
	TracerName = "speech-bubbles"
)

// Span attribute keys
const (
	AttrPassID     = "pass_id"
	AttrNotePath   = "note_path"
	AttrTrigger    = "trigger"
	AttrBlockIndex = "block_index"
	AttrLineCount  = "line_count"
	AttrBubbles    = "bubble_count"
	AttrFormat     = "format"
	AttrBackend    = "cache_backend"
	AttrCacheHit   = "cache_hit"
	AttrForced     = "forced"
	AttrDurationMs = "duration_ms"
	AttrErrorCode  = "error_code"
	AttrRetryable  = "retryable"
)

// Span names
const (
	SpanRenderPass  = "speech_bubbles.render_pass"
	SpanRenderBlock = "speech_bubbles.render_block"
	SpanOutput      = "speech_bubbles.output"
	SpanCacheLookup = "speech_bubbles.cache_lookup"
)

// Tracer provides tracing for render operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new render tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartPassSpan starts a root span for a render pass.
func (t *Tracer) StartPassSpan(ctx context.Context, passID, notePath string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, SpanRenderPass,
		trace.WithAttributes(
			attribute.String(AttrPassID, passID),
		),
	)
	if notePath != "" {
		span.SetAttributes(attribute.String(AttrNotePath, notePath))
	}
	return ctx, span
}

// StartBlockSpan starts a span for one block within a pass.
func (t *Tracer) StartBlockSpan(ctx context.Context, index int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRenderBlock,
		trace.WithAttributes(
			attribute.Int(AttrBlockIndex, index),
		),
	)
}

// StartOutputSpan starts a span for writing rendered output.
func (t *Tracer) StartOutputSpan(ctx context.Context, format string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanOutput,
		trace.WithAttributes(
			attribute.String(AttrFormat, format),
		),
	)
}

// StartCacheSpan starts a span for a cache lookup.
func (t *Tracer) StartCacheSpan(ctx context.Context, backend string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanCacheLookup,
		trace.WithAttributes(
			attribute.String(AttrBackend, backend),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetLineCounts sets line classification attributes on the span.
func (h *SpanHelper) SetLineCounts(lines, bubbles int) {
	h.span.SetAttributes(
		attribute.Int(AttrLineCount, lines),
		attribute.Int(AttrBubbles, bubbles),
	)
}

// SetForced marks whether the transcript tag gate was bypassed.
func (h *SpanHelper) SetForced(forced bool) {
	h.span.SetAttributes(attribute.Bool(AttrForced, forced))
}

// SetCacheHit records the cache lookup result.
func (h *SpanHelper) SetCacheHit(hit bool) {
	h.span.SetAttributes(attribute.Bool(AttrCacheHit, hit))
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorCode string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, errorCode),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
