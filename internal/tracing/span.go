package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to chat spans.
const (
	AttrSystem     = attribute.Key("gen_ai.system")
	AttrOperation  = attribute.Key("gen_ai.operation.name")
	AttrModel      = attribute.Key("gen_ai.request.model")
	AttrCategory   = attribute.Key("dialogfire.category")
	AttrUserID     = attribute.Key("dialogfire.user_id")
	AttrMessages   = attribute.Key("dialogfire.messages")
	AttrReplyChars = attribute.Key("dialogfire.reply_chars")
)

// StartChatSpan starts a client span for one chat collaborator call.
func StartChatSpan(ctx context.Context, tracer trace.Tracer, operation, model string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "chat "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		AttrSystem.String("openai"),
		AttrOperation.String(operation),
	)
	if model != "" {
		span.SetAttributes(AttrModel.String(model))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
