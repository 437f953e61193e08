package otelcall

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/kroma-labs/runtimehttp/httpclient/otelcall"

type config struct {
	// TracerProvider creates the call spans.
	// If nil, uses otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// Propagator writes the trace context into call headers.
	// If nil, uses otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator

	// ServiceName is added as "http.client.name" on every span.
	ServiceName string
}

// Option configures Wrap.
type Option func(*config)

func newConfig(opts ...Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	return cfg
}

// WithTracerProvider sets the tracer provider used to start spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithPropagator sets the propagator used to inject trace context.
//
// Example:
//
//	call := otelcall.Wrap(client.CallFunc(),
//	    otelcall.WithPropagator(propagation.TraceContext{}),
//	)
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.Propagator = p
	}
}

// WithServiceName labels spans with the calling service.
func WithServiceName(name string) Option {
	return func(cfg *config) {
		cfg.ServiceName = name
	}
}
