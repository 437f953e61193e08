package httpclient

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for HTTP client operations.
type metrics struct {
	// === Request Duration & Size Metrics ===

	// requestDuration measures the total request duration in seconds.
	// Buckets optimized for HTTP latencies per OTel semconv.
	requestDuration metric.Float64Histogram

	// requestBodySize measures the size of request bodies in bytes.
	requestBodySize metric.Int64Histogram

	// responseBodySize measures the size of response bodies in bytes.
	responseBodySize metric.Int64Histogram

	// === Connection Pool Metrics ===

	// openConnections counts connections opened rather than reused.
	openConnections metric.Int64UpDownCounter

	// connectionDuration measures time to establish a connection.
	connectionDuration metric.Float64Histogram

	// === Network Timing Metrics ===

	// dnsDuration measures DNS lookup time in seconds.
	dnsDuration metric.Float64Histogram

	// tlsDuration measures TLS handshake time in seconds.
	tlsDuration metric.Float64Histogram

	// ttfb measures Time To First Byte in seconds.
	ttfb metric.Float64Histogram

	// contentTransferDuration measures body download and decoding time in seconds.
	contentTransferDuration metric.Float64Histogram

	// === Active Request Tracking ===

	// activeRequests tracks the number of in-flight requests.
	activeRequests metric.Int64UpDownCounter

	// === Error Metrics ===

	// requestErrors counts failed calls by error kind.
	requestErrors metric.Int64Counter

	// === Circuit Breaker Metrics ===

	// breakerRequests counts requests seen by the breaker, by outcome.
	breakerRequests metric.Int64Counter

	// breakerState is the current breaker state (0 closed, 1 half-open, 2 open).
	breakerState metric.Int64Gauge
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	// Request duration histogram with OTel semconv recommended buckets
	m.requestDuration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	// Request body size histogram
	m.requestBodySize, err = meter.Int64Histogram(
		"http.client.request.body.size",
		metric.WithDescription("Size of HTTP client request bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(
			0, 100, 1024, 10*1024, 100*1024, 1024*1024, 10*1024*1024,
		),
	)
	if err != nil {
		return nil, err
	}

	// Response body size histogram
	m.responseBodySize, err = meter.Int64Histogram(
		"http.client.response.body.size",
		metric.WithDescription("Size of HTTP client response bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(
			0, 100, 1024, 10*1024, 100*1024, 1024*1024, 10*1024*1024,
		),
	)
	if err != nil {
		return nil, err
	}

	// Open connections counter
	m.openConnections, err = meter.Int64UpDownCounter(
		"http.client.open_connections",
		metric.WithDescription("Number of HTTP client connections opened"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	// Connection duration histogram
	m.connectionDuration, err = meter.Float64Histogram(
		"http.client.connection.duration",
		metric.WithDescription("Time to establish HTTP connection in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
		),
	)
	if err != nil {
		return nil, err
	}

	// DNS duration histogram
	m.dnsDuration, err = meter.Float64Histogram(
		"http.client.dns.duration",
		metric.WithDescription("DNS lookup duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
		),
	)
	if err != nil {
		return nil, err
	}

	// TLS handshake duration histogram
	m.tlsDuration, err = meter.Float64Histogram(
		"http.client.tls.duration",
		metric.WithDescription("TLS handshake duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
		),
	)
	if err != nil {
		return nil, err
	}

	// Time to first byte histogram
	m.ttfb, err = meter.Float64Histogram(
		"http.client.ttfb",
		metric.WithDescription("Time to first response byte in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5,
		),
	)
	if err != nil {
		return nil, err
	}

	// Content transfer duration histogram
	m.contentTransferDuration, err = meter.Float64Histogram(
		"http.client.content_transfer.duration",
		metric.WithDescription("Response body download and decoding duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	// Active requests counter
	m.activeRequests, err = meter.Int64UpDownCounter(
		"http.client.active_requests",
		metric.WithDescription("Number of active HTTP client requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Request errors counter
	m.requestErrors, err = meter.Int64Counter(
		"http.client.request.error",
		metric.WithDescription("Number of failed HTTP client calls by error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.breakerRequests, err = meter.Int64Counter(
		"http.client.breaker.requests",
		metric.WithDescription("Number of requests seen by the circuit breaker"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.breakerState, err = meter.Int64Gauge(
		"http.client.breaker.state",
		metric.WithDescription("Circuit breaker state: 0 closed, 1 half-open, 2 open"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// recordRequestDuration records the duration of an HTTP request.
func (m *metrics) recordRequestDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordRequestBodySize records the size of a request body.
func (m *metrics) recordRequestBodySize(
	ctx context.Context,
	size int64,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.requestBodySize == nil {
		return
	}
	m.requestBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

// recordResponseBodySize records the size of a response body.
func (m *metrics) recordResponseBodySize(
	ctx context.Context,
	size int64,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.responseBodySize == nil {
		return
	}
	m.responseBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

// recordConnectionOpened records a new (not reused) connection.
func (m *metrics) recordConnectionOpened(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.openConnections == nil {
		return
	}
	m.openConnections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// recordConnectionDuration records the time to establish a connection.
func (m *metrics) recordConnectionDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.connectionDuration == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordDNSDuration records the DNS lookup duration.
func (m *metrics) recordDNSDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.dnsDuration == nil {
		return
	}
	m.dnsDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordTLSDuration records the TLS handshake duration.
func (m *metrics) recordTLSDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.tlsDuration == nil {
		return
	}
	m.tlsDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordTTFB records Time To First Byte.
func (m *metrics) recordTTFB(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.ttfb == nil {
		return
	}
	m.ttfb.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordContentTransferDuration records how long draining and decoding the
// response body took.
func (m *metrics) recordContentTransferDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.contentTransferDuration == nil {
		return
	}
	m.contentTransferDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordActiveRequestStart records a request starting.
func (m *metrics) recordActiveRequestStart(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// recordActiveRequestEnd records a request completing.
func (m *metrics) recordActiveRequestEnd(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, -1, metric.WithAttributes(attrs...))
}

// recordError records a request error.
func (m *metrics) recordError(ctx context.Context, errorType string, attrs []attribute.KeyValue) {
	if m == nil || m.requestErrors == nil {
		return
	}
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, attrs...)
	allAttrs = append(allAttrs, attribute.String("error.type", errorType))
	m.requestErrors.Add(ctx, 1, metric.WithAttributes(allAttrs...))
}

// recordBreakerRequest records one request outcome. Excluded requests are
// errors the classifier ignores.
func (m *metrics) recordBreakerRequest(ctx context.Context, name, outcome string) {
	if m == nil || m.breakerRequests == nil {
		return
	}
	m.breakerRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", name),
		attribute.String("breaker.outcome", outcome),
	))
}

// recordBreakerState records a breaker state transition.
func (m *metrics) recordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(
		attribute.String("breaker.name", name),
	))
}

// callAttributes returns the attributes recorded with the duration of a
// call. status is 0 and kind is empty when they do not apply.
func callAttributes(
	base []attribute.KeyValue,
	method string,
	target *url.URL,
	status int,
	kind string,
) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(base)+5)
	attrs = append(attrs, base...)
	attrs = append(attrs, attribute.String("http.request.method", method))

	if target != nil {
		if host := target.Hostname(); host != "" {
			attrs = append(attrs, attribute.String("server.address", host))
		}
		port := target.Port()
		if port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				attrs = append(attrs, attribute.Int("server.port", p))
			}
		} else {
			switch target.Scheme {
			case "http":
				attrs = append(attrs, attribute.Int("server.port", 80))
			case "https":
				attrs = append(attrs, attribute.Int("server.port", 443))
			}
		}
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String("error.type", kind))
	}
	return attrs
}
