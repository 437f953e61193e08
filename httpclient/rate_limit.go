package httpclient

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the outbound request rate of a Transport.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	// Zero or less disables rate limiting.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed in a burst.
	// This allows brief spikes above the rate limit.
	Burst int

	// WaitOnLimit determines behavior when rate limit is hit.
	// If true, requests wait for a token (respecting the call deadline).
	// If false, requests immediately return ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns a sensible default rate limit configuration.
// 100 requests per second with a burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is returned when a request is rejected due to rate limiting.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateLimitTransport implements http.RoundTripper with rate limiting.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
}

// newRateLimitTransport creates a rate-limited transport wrapper.
func newRateLimitTransport(next http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerSecond <= 0 {
		return next // No rate limiting
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &rateLimitTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		wait:    cfg.WaitOnLimit,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		// Wait for token, respecting context deadline
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrRateLimited
		}
	} else if !t.limiter.Allow() {
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}

// RateLimiterStats provides visibility into rate limiter state.
type RateLimiterStats struct {
	// Limit is the maximum rate per second.
	Limit float64
	// Burst is the maximum burst size.
	Burst int
	// TokensAvailable is the current number of tokens.
	TokensAvailable float64
}

// Stats returns the limiter's current state.
func (t *rateLimitTransport) Stats() RateLimiterStats {
	return RateLimiterStats{
		Limit:           float64(t.limiter.Limit()),
		Burst:           t.limiter.Burst(),
		TokensAvailable: t.limiter.Tokens(),
	}
}

// RateLimiterStats returns the Transport's rate limiter state, and false
// when rate limiting is off.
func (t *Transport) RateLimiterStats() (RateLimiterStats, bool) {
	rl := findRateLimiter(t.client.Transport)
	if rl == nil {
		return RateLimiterStats{}, false
	}
	return rl.Stats(), true
}

// findRateLimiter walks the wrapper chain built by newTransport.
func findRateLimiter(rt http.RoundTripper) *rateLimitTransport {
	for rt != nil {
		switch t := rt.(type) {
		case *rateLimitTransport:
			return t
		case *instrumentedTransport:
			rt = t.base
		default:
			return nil
		}
	}
	return nil
}
