package httpclient

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// networkTrace holds timing data collected from httptrace.ClientTrace.
//
// HTTP/2 may invoke hooks from the connection's goroutine, so fields are
// guarded by mu.
type networkTrace struct {
	mu sync.Mutex

	// DNS timing
	dnsStart time.Time
	dnsDone  time.Time

	// Connection timing
	connectStart time.Time
	connectDone  time.Time

	// TLS timing
	tlsStart time.Time
	tlsDone  time.Time

	// Request/Response timing
	wroteRequestTime  time.Time
	firstResponseTime time.Time

	connReused bool
}

// createClientTrace creates an httptrace.ClientTrace that populates networkTrace.
func createClientTrace(nt *networkTrace) *httptrace.ClientTrace {
	set := func(f func()) {
		nt.mu.Lock()
		f()
		nt.mu.Unlock()
	}

	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			set(func() { nt.connReused = info.Reused })
		},
		DNSStart: func(_ httptrace.DNSStartInfo) {
			set(func() { nt.dnsStart = time.Now() })
		},
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			set(func() { nt.dnsDone = time.Now() })
		},
		ConnectStart: func(_, _ string) {
			set(func() { nt.connectStart = time.Now() })
		},
		ConnectDone: func(_, _ string, _ error) {
			set(func() { nt.connectDone = time.Now() })
		},
		TLSHandshakeStart: func() {
			set(func() { nt.tlsStart = time.Now() })
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, _ error) {
			set(func() { nt.tlsDone = time.Now() })
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			set(func() { nt.wroteRequestTime = time.Now() })
		},
		GotFirstResponseByte: func() {
			set(func() { nt.firstResponseTime = time.Now() })
		},
	}
}

// recordTimingMetrics records network timing metrics.
func (nt *networkTrace) recordTimingMetrics(
	ctx context.Context,
	m *metrics,
	attrs []attribute.KeyValue,
) {
	if m == nil {
		return
	}

	nt.mu.Lock()
	defer nt.mu.Unlock()

	// Track new connection opened (not reused from pool)
	if !nt.connReused && !nt.connectStart.IsZero() {
		m.recordConnectionOpened(ctx, attrs)
	}

	if !nt.dnsStart.IsZero() && !nt.dnsDone.IsZero() {
		m.recordDNSDuration(ctx, nt.dnsDone.Sub(nt.dnsStart), attrs)
	}

	if !nt.connectStart.IsZero() && !nt.connectDone.IsZero() {
		m.recordConnectionDuration(ctx, nt.connectDone.Sub(nt.connectStart), attrs)
	}

	if !nt.tlsStart.IsZero() && !nt.tlsDone.IsZero() {
		m.recordTLSDuration(ctx, nt.tlsDone.Sub(nt.tlsStart), attrs)
	}

	// TTFB (Time To First Byte)
	if !nt.wroteRequestTime.IsZero() && !nt.firstResponseTime.IsZero() {
		m.recordTTFB(ctx, nt.firstResponseTime.Sub(nt.wroteRequestTime), attrs)
	}
}
