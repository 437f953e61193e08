package httpclient

import (
	"context"

	"github.com/google/uuid"
)

// Middleware wraps a CallFunc. Middlewares change the Call on its way in or
// observe the outcome on its way out; they never see the wire request.
//
// Common use cases:
//   - Adding static headers (User-Agent, API keys)
//   - Injecting correlation IDs
//   - Tracing (see the otelcall package)
type Middleware func(next CallFunc) CallFunc

// Chain wraps base with mws. The first middleware is the outermost, so it
// runs first on the way in and last on the way out.
//
//	call := httpclient.Chain(client.CallFunc(),
//	    httpclient.UserAgent("runtime/1.0"),
//	    httpclient.CorrelationID("X-Correlation-Id"),
//	)
func Chain(base CallFunc, mws ...Middleware) CallFunc {
	call := base
	for i := len(mws) - 1; i >= 0; i-- {
		call = mws[i](call)
	}
	return call
}

// DefaultHeaders adds headers the caller did not set. A header the caller
// set, even to "", is left alone.
func DefaultHeaders(headers Headers) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, call Call) (*Result, error) {
			merged := call.Headers.Clone()
			for _, h := range headers {
				if !merged.Has(h.Name) {
					merged = append(merged, h)
				}
			}
			call.Headers = merged
			return next(ctx, call)
		}
	}
}

// UserAgent sets User-Agent unless the caller set one.
func UserAgent(userAgent string) Middleware {
	return DefaultHeaders(Headers{{Name: "User-Agent", Value: userAgent}})
}

// CorrelationID adds a fresh UUID under headerName unless the caller set
// one.
func CorrelationID(headerName string) Middleware {
	return func(next CallFunc) CallFunc {
		return func(ctx context.Context, call Call) (*Result, error) {
			if !call.Headers.Has(headerName) {
				call.Headers = append(call.Headers.Clone(), Header{Name: headerName, Value: uuid.NewString()})
			}
			return next(ctx, call)
		}
	}
}
