package httpclient

import (
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore creates a SharedDataStore backed by Redis, so every process
// using the same breaker name shares one breaker state.
//
// Usage:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	cfg := httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker is the interface used by circuit breaker transport.
// It matches gobreaker.CircuitBreaker signature.
type CircuitBreaker interface {
	Execute(req func() (any, error)) (any, error)
}

// BreakerClassifier reports whether a transport error counts against the
// breaker. HTTP responses never do, whatever their status.
type BreakerClassifier func(err error) bool

// BreakerConfig holds the configuration for the circuit breaker.
//
// Concepts:
//   - Closed: Normal state, requests allowed.
//   - Open: Failing state, requests rejected immediately.
//   - Half-Open: Probing state, limited requests allowed to test recovery.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass through
	// when the circuit breaker is half-open (probing).
	// If 0, the circuit breaker allows 1 request.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state
	// for the CircuitBreaker to clear the internal Counts.
	// If 0, the CircuitBreaker doesn't clear internal Counts during the closed state.
	Interval time.Duration

	// Timeout is the period of the open state,
	// after which the state of the CircuitBreaker becomes half-open.
	// gobreaker defaults this to 60s if 0.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests needed before a circuit can be tripped due to failure ratio.
	FailureThreshold uint32

	// FailureRatio is the threshold of failure ratio (0.0 - 1.0) to trip the circuit.
	FailureRatio float64

	// ConsecutiveFailures is the number of consecutive failures that will trip the circuit.
	// If 0, this rule is disabled.
	ConsecutiveFailures uint32

	// Store is the shared data store for distributed circuit breaking.
	// If nil, the circuit breaker is local (in-memory).
	Store gobreaker.SharedDataStore

	// Classifier determines which errors count as failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// OnStateChange is a callback invoked when the circuit breaker state changes.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DistributedBreakerConfig returns DefaultBreakerConfig backed by store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerConfig returns the configuration for a local (in-memory)
// circuit breaker:
//   - Interval: 10s
//   - Timeout: 10s
//   - FailureThreshold: 20
//   - FailureRatio: 0.5
//   - ConsecutiveFailures: 5
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DefaultBreakerClassifier counts network errors: refused or reset
// connections, dial and TLS failures, and network timeouts. Caller
// cancellation does not count.
func DefaultBreakerClassifier(err error) bool {
	return isNetworkError(err)
}

// isNetworkError checks for common network errors.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	return false
}
