// Package otelcall traces httpclient calls with OpenTelemetry.
//
// It wraps an httpclient.CallFunc, so the client itself never depends on a
// tracer:
//
//	client, err := httpclient.New()
//	if err != nil {
//	    return err
//	}
//	call := otelcall.Wrap(client.CallFunc(), otelcall.WithServiceName("runtime"))
//	res, err := call(ctx, httpclient.Call{URL: "https://api.example.com"})
package otelcall

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/runtimehttp/httpclient"
)

// Wrap returns a CallFunc that runs next inside a client span named
// "HTTP {method}".
//
// The trace context is injected into the call's headers. A header the caller
// already set is left alone.
func Wrap(next httpclient.CallFunc, opts ...Option) httpclient.CallFunc {
	cfg := newConfig(opts...)
	tracer := cfg.TracerProvider.Tracer(scope)

	return func(ctx context.Context, call httpclient.Call) (*httpclient.Result, error) {
		method := strings.ToUpper(call.Method)
		if method == "" {
			method = http.MethodGet
		}

		ctx, span := tracer.Start(ctx, "HTTP "+method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(requestAttributes(cfg, method, call)...),
		)
		defer span.End()

		call.Headers = inject(ctx, cfg.Propagator, call.Headers)

		res, err := next(ctx, call)
		if err != nil {
			setSpanError(span, err)
			return nil, err
		}

		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
		if res.StatusCode >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", res.StatusCode))
			span.SetAttributes(attribute.String("error.type", strconv.Itoa(res.StatusCode)))
		}
		return res, nil
	}
}

// Middleware returns Wrap as an httpclient.Middleware.
func Middleware(opts ...Option) httpclient.Middleware {
	return func(next httpclient.CallFunc) httpclient.CallFunc {
		return Wrap(next, opts...)
	}
}

// inject returns headers plus the propagated fields the caller did not set.
// The caller's slice is not modified.
func inject(ctx context.Context, p propagation.TextMapPropagator, headers httpclient.Headers) httpclient.Headers {
	carrier := propagation.MapCarrier{}
	p.Inject(ctx, carrier)
	if len(carrier) == 0 {
		return headers
	}

	keys := carrier.Keys()
	sort.Strings(keys)

	out := headers.Clone()
	for _, k := range keys {
		if !out.Has(k) {
			out = append(out, httpclient.Header{Name: k, Value: carrier.Get(k)})
		}
	}
	return out
}

func requestAttributes(cfg *config, method string, call httpclient.Call) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	attrs = append(attrs, attribute.String("http.request.method", method))

	// User-info carries credentials and must not reach the span.
	u, _, cerr := httpclient.NormalizeURL(call.URL, call.Query)
	if cerr != nil {
		return attrs
	}
	attrs = append(attrs,
		attribute.String("url.full", u.String()),
		attribute.String("url.scheme", u.Scheme),
		attribute.String("server.address", u.Hostname()),
	)
	if port := serverPort(u); port > 0 {
		attrs = append(attrs, attribute.Int("server.port", port))
	}
	return attrs
}

func serverPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		return n
	}
	switch u.Scheme {
	case "http":
		return 80
	case "https":
		return 443
	}
	return 0
}

func setSpanError(span trace.Span, err error) {
	span.RecordError(err)

	var cerr *httpclient.ClientError
	if !errors.As(err, &cerr) {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", "unknown"))
		return
	}

	span.SetStatus(codes.Error, cerr.Message)
	span.SetAttributes(attribute.String("error.type", cerr.Kind.String()))
	if cerr.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", cerr.StatusCode))
	}
}
