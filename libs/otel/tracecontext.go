package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	traceparentKey = "traceparent"
	tracestateKey  = "tracestate"
)

// TraceContextStrings returns the W3C headers for the span in ctx, so a row
// written now (outbox event, reminder job) can resume the trace later.
func TraceContextStrings(ctx context.Context) (traceparent, tracestate string) {
	c := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, c)
	return c[traceparentKey], c[tracestateKey]
}

// ContextWithTraceContext is the inverse of TraceContextStrings. Empty input
// returns ctx unchanged.
func ContextWithTraceContext(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" && tracestate == "" {
		return ctx
	}
	c := propagation.MapCarrier{traceparentKey: traceparent}
	if tracestate != "" {
		c[tracestateKey] = tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, c)
}
