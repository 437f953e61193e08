package httpclient

import (
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// ErrFaultInjected is the cause of connection failures produced by fault
// injection.
var ErrFaultInjected = errors.New("fault injection: simulated connection failure")

// FaultConfig injects failures below the breaker, so resilience settings can
// be exercised without a misbehaving upstream.
//
// Example:
//
//	client, err := httpclient.New(
//	    httpclient.WithFaultInjection(httpclient.FaultConfig{
//	        Latency:   200 * time.Millisecond,
//	        ErrorRate: 0.1,
//	    }),
//	)
type FaultConfig struct {
	// Latency is added before every request is sent.
	Latency time.Duration

	// Jitter adds a random delay in [0, Jitter) on top of Latency.
	Jitter time.Duration

	// ErrorRate is the probability (0.0-1.0) of failing a request with a
	// dial error wrapping ErrFaultInjected.
	ErrorRate float64

	// TimeoutRate is the probability (0.0-1.0) of holding a request until
	// its deadline.
	TimeoutRate float64
}

// Enabled reports whether the config injects anything.
func (c FaultConfig) Enabled() bool {
	return c.Latency > 0 || c.Jitter > 0 || c.ErrorRate > 0 || c.TimeoutRate > 0
}

func (c FaultConfig) delay() time.Duration {
	d := c.Latency
	if c.Jitter > 0 {
		d += rand.N(c.Jitter) //nolint:gosec
	}
	return d
}

func roll(rate float64) bool {
	return rate > 0 && rand.Float64() < rate //nolint:gosec
}

type faultTransport struct {
	next   http.RoundTripper
	config FaultConfig
}

func newFaultTransport(next http.RoundTripper, cfg FaultConfig) http.RoundTripper {
	if !cfg.Enabled() {
		return next
	}
	return &faultTransport{next: next, config: cfg}
}

func (t *faultTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if roll(t.config.TimeoutRate) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if roll(t.config.ErrorRate) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrFaultInjected}
	}

	if d := t.config.delay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return t.next.RoundTrip(req)
}
