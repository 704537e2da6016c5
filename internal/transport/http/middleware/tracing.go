package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arklim/digital-bank-auth/internal/transport/http"

// TracingOptions customises the tracing middleware.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// Tracing starts a server span per request, continuing any trace propagated by the caller.
// It must run before EnrichContext so the span's trace ID becomes the response trace ID.
func Tracing(opts TracingOptions) gin.HandlerFunc {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	propagators := opts.Propagators
	if propagators == nil {
		propagators = otel.GetTextMapPropagator()
	}
	tracer := tp.Tracer(tracerName)

	return func(c *gin.Context) {
		ctx := propagators.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			attribute.String("client.address", c.ClientIP()),
		}
		// Unmatched paths share one span name.
		name := "HTTP " + c.Request.Method
		if route := c.FullPath(); route != "" {
			name = c.Request.Method + " " + route
			attrs = append(attrs, semconv.HTTPRoute(route))
		}

		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
	}
}
