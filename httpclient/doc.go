// Package httpclient is the outbound HTTP client used by the runtime's
// standard library. It keeps the wire behavior of the client it replaced:
// redirects are returned rather than followed, bodies are decompressed by
// this package so Content-Encoding stays visible, response headers start
// with a status-line pseudo-header, and HTTP/2 header names are lowercased.
//
// # Features
//
//   - One shared, pooled Transport with HTTP/2 health-check pings
//   - gzip, raw deflate and Brotli response decoding
//   - UTF-8 and Latin-1 body text, with a sentinel for undecodable bodies
//   - A closed error taxonomy: every failure is a *ClientError with a Kind
//   - OpenTelemetry metrics for calls, errors and network timings
//   - Optional circuit breaker (local or Redis-shared) and rate limiter
//
// # Quick Start
//
//	transport, err := httpclient.NewTransport(httpclient.WithServiceName("runtime"))
//	if err != nil {
//	    return err
//	}
//	defer transport.Close()
//
//	client := httpclient.NewWithTransport(transport)
//
//	res, err := client.MakeCall(ctx, httpclient.Call{
//	    URL:    "https://api.example.com/users?active=true",
//	    Query:  []httpclient.QueryParam{{Key: "page", Values: []string{"2"}}},
//	    Method: http.MethodGet,
//	})
//
// Or with the fluent builder:
//
//	res, err := client.Request("https://api.example.com/users").
//	    Header("Authorization", "Bearer "+token).
//	    Body(httpclient.StringContent("hello")).
//	    Post(ctx)
//
// # Results and Errors
//
// Any response the server sends, 404 and 500 included, is a *Result:
//
//	res.StatusCode       // 404
//	res.Headers[0].Name  // "HTTP/2 404"
//	res.Body             // decoded text
//
// A call that produces no response returns a *ClientError. Its message
// starts with "Internal HTTP-stack exception: ":
//
//	var cerr *httpclient.ClientError
//	if errors.As(err, &cerr) {
//	    switch cerr.Kind {
//	    case httpclient.KindTimeout:
//	    case httpclient.KindInvalidEncoding:
//	        // cerr.StatusCode is the status that was received
//	    }
//	}
//
// # Request Bodies
//
// The body is one of NoContent, StringContent, FormContent or
// FormCompatNoCharset. It decides the Content-Type unless the caller's
// headers set one.
//
// # Configuration
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 10 * time.Second
//	cfg.MaxResponseBytes = 10 * 1024 * 1024
//
//	transport, err := httpclient.NewTransport(httpclient.WithConfig(cfg))
//
// # Circuit Breaker
//
// Only transport failures count against the breaker; HTTP statuses never do.
// Rejected calls fail with KindProtocolFailure.
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	transport, err := httpclient.NewTransport(
//	    httpclient.WithBreaker(httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))),
//	)
//
// # Middleware
//
// Cross-cutting behavior wraps a CallFunc instead of the transport:
//
//	call := httpclient.Chain(client.CallFunc(),
//	    httpclient.UserAgent("runtime/1.0"),
//	    httpclient.CorrelationID("X-Correlation-Id"),
//	)
//
// # Fault Injection
//
// WithFaultInjection adds latency, dial failures or stalls below the breaker,
// for exercising timeouts and breaker settings outside production.
//
// # Tracing
//
// This package records metrics only. Wrap Client.CallFunc with the otelcall
// package for spans.
//
// # Testing
//
//	mock := httpclient.NewMockTransport().
//	    StubPath("/users", http.StatusOK, `[{"id":1}]`)
//	client, _ := httpclient.New(httpclient.WithMockTransport(mock))
package httpclient
