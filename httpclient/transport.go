package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"

	"golang.org/x/net/http2"
)

// Transport is the shared, pooled execution engine behind every call.
//
// Build it once per process and hand it to every Client that needs it; a
// Transport per call would defeat connection reuse. It is safe for
// concurrent use.
//
// Behavior fixed at construction:
//   - redirects are never followed; a 3xx is returned as the response
//   - responses are never decompressed by net/http
//   - there is no cookie jar
//   - no connection starts a request after Config.MaxConnLifetime
type Transport struct {
	cfg    *internalConfig
	base   *http.Transport
	h2     *http2.Transport
	client *http.Client

	// pool is nil when connections live forever.
	pool *agingConnPool

	closeOnce sync.Once
}

// NewTransport builds the shared Transport.
//
// Example:
//
//	transport, err := httpclient.NewTransport(
//	    httpclient.WithConfig(cfg),
//	    httpclient.WithServiceName("runtime"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer transport.Close()
func NewTransport(opts ...Option) (*Transport, error) {
	return newTransport(newConfig(opts...))
}

func newTransport(cfg *internalConfig) (*Transport, error) {
	if err := cfg.httpConfig.Validate(); err != nil {
		return nil, err
	}

	base := cfg.buildTransport()

	h2, err := http2.ConfigureTransports(base)
	if err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	h2.ReadIdleTimeout = cfg.httpConfig.HTTP2ReadIdleTimeout
	h2.PingTimeout = cfg.httpConfig.HTTP2PingTimeout

	var pool *agingConnPool
	var rt http.RoundTripper = base
	if lifetime := cfg.httpConfig.MaxConnLifetime; lifetime > 0 {
		pool = newAgingConnPool(h2.ConnPool, lifetime)
		h2.ConnPool = pool
		rt = newLifetimeTransport(base, lifetime)
	}
	if cfg.RoundTripper != nil {
		rt = cfg.RoundTripper
	}
	if cfg.FaultConfig != nil {
		rt = newFaultTransport(rt, *cfg.FaultConfig)
	}
	rt = newCircuitBreakerTransport(rt, cfg)
	if cfg.RateLimitConfig != nil {
		rt = newRateLimitTransport(rt, *cfg.RateLimitConfig)
	}
	rt = newInstrumentedTransport(rt, cfg)

	t := &Transport{
		cfg:  cfg,
		base: base,
		h2:   h2,
		pool: pool,
		client: &http.Client{
			Transport: rt,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Jar: nil,
		},
	}

	return t, nil
}

// buildTransport creates the *http.Transport from the configuration.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:       hc.DialTimeout,
		KeepAlive:     hc.KeepAlive,
		FallbackDelay: hc.FallbackDelay,
	}

	dial := dialFunc(dialer.DialContext)
	if hc.MaxConnLifetime > 0 {
		dial = dialAged(dial)
	}

	transport := &http.Transport{
		DialContext:            dial,
		MaxIdleConns:           hc.MaxIdleConns,
		MaxIdleConnsPerHost:    hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:        hc.MaxConnsPerHost,
		IdleConnTimeout:        hc.IdleConnTimeout,
		TLSHandshakeTimeout:    hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout:  hc.ResponseHeaderTimeout,
		ExpectContinueTimeout:  hc.ExpectContinueTimeout,
		DisableCompression:     true,
		WriteBufferSize:        hc.WriteBufferSize,
		ReadBufferSize:         hc.ReadBufferSize,
		MaxResponseHeaderBytes: hc.MaxResponseHeaderBytes,
		TLSClientConfig:        cfg.TLSConfig,
		ForceAttemptHTTP2:      true,
	}

	// Configure proxy
	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else if cfg.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// Execute sends req and returns the response with its body unread.
// Redirects are not followed. The caller must close the body.
func (t *Transport) Execute(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

// Close closes idle connections. In-flight calls are not interrupted.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.base.CloseIdleConnections()
		if t.pool != nil {
			t.pool.closeIdle()
		} else {
			t.h2.CloseIdleConnections()
		}
	})
}

// =============================================================================
// Instrumentation
// =============================================================================

// Compile-time interface check.
var _ http.RoundTripper = (*instrumentedTransport)(nil)

// instrumentedTransport records in-flight requests, request body sizes and
// network timings for every round trip.
type instrumentedTransport struct {
	base http.RoundTripper
	cfg  *internalConfig
}

func newInstrumentedTransport(base http.RoundTripper, cfg *internalConfig) *instrumentedTransport {
	return &instrumentedTransport{base: base, cfg: cfg}
}

// RoundTrip implements http.RoundTripper.
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Track active requests
	baseAttrs := t.cfg.baseAttributes()
	t.cfg.Metrics.recordActiveRequestStart(ctx, baseAttrs)
	defer t.cfg.Metrics.recordActiveRequestEnd(ctx, baseAttrs)

	if req.ContentLength > 0 {
		t.cfg.Metrics.recordRequestBodySize(ctx, req.ContentLength, baseAttrs)
	}

	var nt *networkTrace
	if t.cfg.EnableNetworkTrace {
		nt = &networkTrace{}
		req = req.WithContext(httptrace.WithClientTrace(ctx, createClientTrace(nt)))
	}

	resp, err := t.base.RoundTrip(req)

	if nt != nil {
		nt.recordTimingMetrics(ctx, t.cfg.Metrics, baseAttrs)
	}

	return resp, err
}
