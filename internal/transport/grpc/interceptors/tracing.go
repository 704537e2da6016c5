package interceptors

import (
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// TracingOptions customises server span creation.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	// SkipServices lists fully qualified services that never produce spans, e.g. health probes.
	SkipServices []string
}

// NewTracingHandler returns an OpenTelemetry stats handler that opens a server span per RPC.
func NewTracingHandler(opts TracingOptions) stats.Handler {
	options := make([]otelgrpc.Option, 0, 3)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	if skip := toSet(opts.SkipServices); len(skip) > 0 {
		options = append(options, otelgrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
			service, _ := splitFullMethod(info.FullMethodName)
			_, skipped := skip[strings.TrimPrefix(service, "/")]
			return !skipped
		}))
	}
	return otelgrpc.NewServerHandler(options...)
}

// TracingServerOption installs the tracing stats handler on a gRPC server.
func TracingServerOption(opts TracingOptions) grpc.ServerOption {
	return grpc.StatsHandler(NewTracingHandler(opts))
}
