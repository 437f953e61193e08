package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
)

// errConnRetired is returned by the first write of a new request on an
// HTTP/1 connection past its lifetime. Nothing reaches the wire, so
// net/http retries the request on a fresh connection.
var errConnRetired = errors.New("connection reached max lifetime")

// dialFunc matches http.Transport.DialContext.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// =============================================================================
// Aged Connections
// =============================================================================

// agedConn is a dialed connection that knows when it was opened.
//
// Once retired it refuses to start another HTTP/1 exchange: a write that
// follows a read is the start of the next request.
type agedConn struct {
	net.Conn
	born time.Time

	retired        atomic.Bool
	readSinceWrite atomic.Bool
}

// dialAged stamps every connection dial opens with its creation time.
func dialAged(dial dialFunc) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &agedConn{Conn: conn, born: time.Now()}, nil
	}
}

func (c *agedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.readSinceWrite.Store(true)
	}
	return n, err
}

func (c *agedConn) Write(p []byte) (int, error) {
	if c.retired.Load() && c.readSinceWrite.Load() {
		_ = c.Conn.Close()
		return 0, errConnRetired
	}
	c.readSinceWrite.Store(false)
	return c.Conn.Write(p)
}

func (c *agedConn) expired(lifetime time.Duration) bool {
	return time.Since(c.born) >= lifetime
}

// agedConnOf returns the agedConn under conn, looking through TLS.
func agedConnOf(conn net.Conn) *agedConn {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	ac, _ := conn.(*agedConn)
	return ac
}

// =============================================================================
// HTTP/1
// =============================================================================

// lifetimeTransport retires an HTTP/1 connection once a call finishes on it
// past its lifetime. HTTP/1 connections carry one exchange at a time, so
// the connection serves no further request.
type lifetimeTransport struct {
	next     http.RoundTripper
	lifetime time.Duration
}

func newLifetimeTransport(next http.RoundTripper, lifetime time.Duration) http.RoundTripper {
	return &lifetimeTransport{next: next, lifetime: lifetime}
}

// RoundTrip implements http.RoundTripper.
func (t *lifetimeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var conn *agedConn
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			conn = agedConnOf(info.Conn)
		},
	}

	resp, err := t.next.RoundTrip(req.WithContext(httptrace.WithClientTrace(req.Context(), trace)))
	if err != nil || conn == nil || resp.ProtoMajor != 1 || !conn.expired(t.lifetime) {
		return resp, err
	}

	resp.Body = &retiringBody{ReadCloser: resp.Body, conn: conn}
	return resp, nil
}

// retiringBody retires its connection when the response is closed.
type retiringBody struct {
	io.ReadCloser
	conn *agedConn
}

func (b *retiringBody) Close() error {
	b.conn.retired.Store(true)
	return b.ReadCloser.Close()
}

// =============================================================================
// HTTP/2
// =============================================================================

// agingConnPool stops handing out HTTP/2 connections older than the
// lifetime. A retired connection finishes its open streams, then closes.
// Age is counted from the connection's first request.
type agingConnPool struct {
	http2.ClientConnPool
	lifetime time.Duration

	mu    sync.Mutex
	conns map[*http2.ClientConn]time.Time
}

func newAgingConnPool(pool http2.ClientConnPool, lifetime time.Duration) *agingConnPool {
	return &agingConnPool{
		ClientConnPool: pool,
		lifetime:       lifetime,
		conns:          make(map[*http2.ClientConn]time.Time),
	}
}

// GetClientConn implements http2.ClientConnPool.
func (p *agingConnPool) GetClientConn(req *http.Request, addr string) (*http2.ClientConn, error) {
	p.retireExpired(time.Now())

	cc, err := p.ClientConnPool.GetClientConn(req, addr)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if _, ok := p.conns[cc]; !ok {
		p.conns[cc] = time.Now()
	}
	p.mu.Unlock()

	return cc, nil
}

// MarkDead implements http2.ClientConnPool.
func (p *agingConnPool) MarkDead(cc *http2.ClientConn) {
	p.mu.Lock()
	delete(p.conns, cc)
	p.mu.Unlock()

	p.ClientConnPool.MarkDead(cc)
}

func (p *agingConnPool) retireExpired(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for cc, first := range p.conns {
		if now.Sub(first) >= p.lifetime || cc.State().Closed {
			retireClientConn(cc)
			delete(p.conns, cc)
		}
	}
}

// closeIdle closes connections with no open or reserved streams.
func (p *agingConnPool) closeIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for cc := range p.conns {
		if clientConnIdle(cc) {
			retireClientConn(cc)
			delete(p.conns, cc)
		}
	}
}

// retireClientConn stops new requests on cc and closes it when idle. A busy
// connection closes itself after its last stream.
func retireClientConn(cc *http2.ClientConn) {
	cc.SetDoNotReuse()
	if clientConnIdle(cc) {
		_ = cc.Close()
	}
}

func clientConnIdle(cc *http2.ClientConn) bool {
	st := cc.State()
	return st.StreamsActive == 0 && st.StreamsReserved == 0 && st.StreamsPending == 0
}
