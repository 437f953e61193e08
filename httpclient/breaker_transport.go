package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// ErrBreakerOpen is returned when the circuit breaker rejects a request
// without sending it.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// circuitBreakerTransport is a RoundTripper that wraps requests in a circuit breaker.
type circuitBreakerTransport struct {
	breaker    CircuitBreaker
	next       http.RoundTripper
	classifier BreakerClassifier
	cfg        *internalConfig
	name       string
}

// RoundTrip implements http.RoundTripper.
//
// A response of any status is a success. A transport error the classifier
// ignores is excluded from the breaker's counts, so it neither trips nor
// heals the circuit.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	res, err := t.breaker.Execute(func() (any, error) {
		return t.next.RoundTrip(req) //nolint:bodyclose
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "rejected")
		return nil, fmt.Errorf("%w: %s", ErrBreakerOpen, t.name)
	case err != nil && !t.classifier(err):
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "excluded")
		return nil, err
	case err != nil:
		t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "failure")
		return nil, err
	}

	t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "success")

	if resp, ok := res.(*http.Response); ok {
		return resp, nil
	}

	return nil, errors.New("circuit breaker returned unknown response type")
}

// newCircuitBreakerTransport wraps next in a circuit breaker when one is
// configured.
func newCircuitBreakerTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.BreakerConfig == nil {
		return next
	}

	// Use ServiceName as the breaker identifier.
	name := cfg.ServiceName
	if name == "" {
		name = "runtimehttp"
	}

	bc := cfg.BreakerConfig
	classifier := bc.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if bc.ConsecutiveFailures > 0 &&
				counts.ConsecutiveFailures >= bc.ConsecutiveFailures {
				return true
			}
			counted := counts.Requests - min(counts.TotalExclusions, counts.Requests)
			if bc.FailureThreshold > 0 && counted < bc.FailureThreshold {
				return false
			}
			if bc.FailureRatio > 0 && counts.TotalFailures > 0 {
				ratio := float64(counts.TotalFailures) / float64(counted)
				if ratio >= bc.FailureRatio {
					return true
				}
			}
			return false
		},
		IsExcluded: func(err error) bool {
			return err != nil && !classifier(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Metrics.recordBreakerState(context.Background(), name, int64(to))
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker

	if bc.Store != nil {
		dcb, err := gobreaker.NewDistributedCircuitBreaker[any](bc.Store, st)
		if err != nil {
			// Keep process-level protection when the shared breaker cannot
			// be created.
			cfg.Logger.Warn().Err(err).Str("breaker", name).
				Msg("distributed circuit breaker unavailable, using local breaker")
			cb = gobreaker.NewCircuitBreaker[any](st)
		} else {
			cb = dcb
		}
	} else {
		cb = gobreaker.NewCircuitBreaker[any](st)
	}

	return &circuitBreakerTransport{
		breaker:    cb,
		next:       next,
		classifier: classifier,
		cfg:        cfg,
		name:       name,
	}
}
