package httpclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/runtimehttp/httpclient"
)

// =============================================================================
// Config - Transport Configuration
// =============================================================================

// Config holds the transport configuration. It is applied once, when the
// shared Transport is built, and cannot change afterwards.
//
// Example:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 10 * time.Second
//
//	client, err := httpclient.New(httpclient.WithConfig(cfg))
type Config struct {
	// Timeout bounds the whole call: connecting, sending, waiting for the
	// response, and reading and decompressing the body. A call that runs
	// over fails with KindTimeout.
	//
	// Default: 30s
	Timeout time.Duration

	// IdleConnTimeout is how long a pooled connection may sit unused before
	// it is closed. Must be shorter than MaxConnLifetime.
	//
	// Default: 5m
	IdleConnTimeout time.Duration

	// MaxConnLifetime bounds how long a connection keeps taking new
	// requests, so DNS changes are picked up even on busy hosts. An
	// HTTP/1 connection is retired after the call that finds it expired;
	// an HTTP/2 connection stops taking streams and closes once its open
	// streams finish. Zero disables the limit.
	//
	// Default: 10m
	MaxConnLifetime time.Duration

	// MaxResponseBytes caps the response body, both as received and after
	// decompression. Larger bodies fail the call with KindProtocolFailure.
	//
	// Default: 100 MiB
	MaxResponseBytes int64

	// MaxIdleConns controls the maximum number of idle connections across
	// all hosts.
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host.
	//
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits total connections per host. Zero is unlimited.
	//
	// Default: 0
	MaxConnsPerHost int

	// TLSHandshakeTimeout is the maximum time to wait for a TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout is the time to wait for response headers after
	// the request is written. Zero defers to Timeout.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration

	// ExpectContinueTimeout is how long to wait for "100 Continue".
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// DialTimeout is the maximum time to establish a TCP connection.
	//
	// Default: 10s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// FallbackDelay is the RFC 6555 Happy Eyeballs delay.
	//
	// Default: 300ms
	FallbackDelay time.Duration

	// WriteBufferSize and ReadBufferSize size the per-connection buffers.
	//
	// Default: 64KB each
	WriteBufferSize int
	ReadBufferSize  int

	// MaxResponseHeaderBytes limits the size of response headers.
	//
	// Default: 0 (net/http default, ~1MB)
	MaxResponseHeaderBytes int64

	// HTTP2ReadIdleTimeout sends a health-check ping on an HTTP/2
	// connection that has received nothing for this long. Zero disables it.
	//
	// Default: 30s
	HTTP2ReadIdleTimeout time.Duration

	// HTTP2PingTimeout closes an HTTP/2 connection whose ping is not
	// answered in time.
	//
	// Default: 15s
	HTTP2PingTimeout time.Duration
}

// DefaultConfig returns the configuration the runtime ships with.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,

		// Idle connections go first; busy ones are retired after
		// MaxConnLifetime.
		IdleConnTimeout: 5 * time.Minute,
		MaxConnLifetime: 10 * time.Minute,

		MaxResponseBytes: 100 * 1024 * 1024,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     0,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0,

		DialTimeout:   10 * time.Second,
		KeepAlive:     30 * time.Second,
		FallbackDelay: 300 * time.Millisecond,

		WriteBufferSize: 64 * 1024,
		ReadBufferSize:  64 * 1024,

		HTTP2ReadIdleTimeout: 30 * time.Second,
		HTTP2PingTimeout:     15 * time.Second,
	}
}

// ErrInvalidPoolLifetime is returned by New when IdleConnTimeout is not
// shorter than MaxConnLifetime.
var ErrInvalidPoolLifetime = errors.New("idle connection timeout must be shorter than max connection lifetime")

// Validate checks the invariants New relies on.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max response bytes must be positive, got %d", c.MaxResponseBytes)
	}
	if c.MaxConnLifetime > 0 && c.IdleConnTimeout >= c.MaxConnLifetime {
		return fmt.Errorf("%w: idle %s, lifetime %s",
			ErrInvalidPoolLifetime, c.IdleConnTimeout, c.MaxConnLifetime)
	}
	return nil
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds the transport configuration plus everything that is
// not part of the wire behavior: metrics, logging and optional guards.
type internalConfig struct {
	httpConfig Config

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Meter is the meter instance created from MeterProvider.
	Meter metric.Meter

	// Metrics holds the metric instruments.
	Metrics *metrics

	// ServiceName is added as "http.client.name" on every metric.
	ServiceName string

	// EnableNetworkTrace records DNS, connect, TLS and TTFB timings.
	// Default: true
	EnableNetworkTrace bool

	// TLSConfig specifies the TLS configuration.
	// If nil, the default configuration is used.
	TLSConfig *tls.Config

	// ProxyURL is the fixed outbound proxy. Nil means direct connections.
	ProxyURL *url.URL

	// ProxyFromEnvironment uses HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
	// Ignored when ProxyURL is set. Default: false
	ProxyFromEnvironment bool

	// BreakerConfig enables the circuit breaker when non-nil.
	BreakerConfig *BreakerConfig

	// RateLimitConfig enables outbound rate limiting when non-nil.
	RateLimitConfig *RateLimitConfig

	// FaultConfig injects latency and failures below the breaker when non-nil.
	FaultConfig *FaultConfig

	// RoundTripper replaces the network transport, for tests.
	RoundTripper http.RoundTripper

	// Logger receives debug output.
	Logger zerolog.Logger

	// Debug logs every call at debug level.
	Debug bool

	// GenerateCurl adds a cURL rendering of the request to debug logs.
	GenerateCurl bool
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:         DefaultConfig(),
		MeterProvider:      otel.GetMeterProvider(),
		EnableNetworkTrace: true,
		Logger:             zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Initialize metrics (ignore errors, will just be nil if fails)
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// baseAttributes returns common attributes for all metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// =============================================================================
// Options
// =============================================================================

// Option configures the client.
type Option func(*internalConfig)

// WithConfig sets the transport configuration. Start from DefaultConfig and
// change what you need:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.MaxResponseBytes = 10 * 1024 * 1024
//
//	client, err := httpclient.New(httpclient.WithConfig(cfg))
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithServiceName sets the "http.client.name" attribute on all metrics.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
// If not called, the global provider from otel.GetMeterProvider() is used.
//
// Example:
//
//	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
//	client, err := httpclient.New(httpclient.WithMeterProvider(mp))
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithTLSConfig sets a custom TLS configuration, e.g. private root CAs.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithProxyURL routes every request through a fixed proxy.
//
// Example:
//
//	proxyURL, _ := url.Parse("http://egress.internal:3128")
//	client, err := httpclient.New(httpclient.WithProxyURL(proxyURL))
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyURL = proxyURL
		cfg.ProxyFromEnvironment = false
	}
}

// WithProxyFromEnvironment enables reading proxy settings from
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
//
// Default: false
func WithProxyFromEnvironment(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyFromEnvironment = enabled
	}
}

// WithDisableNetworkTrace turns off DNS, connect, TLS and TTFB timing
// metrics.
func WithDisableNetworkTrace() Option {
	return func(cfg *internalConfig) {
		cfg.EnableNetworkTrace = false
	}
}

// WithBreaker enables a circuit breaker in front of the network. Only
// transport failures count against it; HTTP status codes never do.
//
// Example:
//
//	client, err := httpclient.New(
//	    httpclient.WithBreaker(httpclient.DefaultBreakerConfig()),
//	)
func WithBreaker(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithRateLimit caps the outbound request rate of the shared transport.
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimitConfig = &rl
	}
}

// WithFaultInjection adds latency and failures to outbound requests. Not for
// production traffic.
func WithFaultInjection(fc FaultConfig) Option {
	return func(cfg *internalConfig) {
		cfg.FaultConfig = &fc
	}
}

// WithRoundTripper replaces the network transport. The configured timeouts,
// redirect and cookie policy still apply. Intended for tests.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.RoundTripper = rt
	}
}

// WithLogger sets the zerolog logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithDebug logs each call's request and outcome at debug level.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithGenerateCurl adds an equivalent cURL command to debug request logs.
func WithGenerateCurl(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.GenerateCurl = enabled
	}
}
