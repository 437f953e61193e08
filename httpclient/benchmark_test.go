package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

func newBenchmarkServer(b *testing.B, handler http.HandlerFunc) string {
	b.Helper()

	ts := httptest.NewServer(handler)
	b.Cleanup(ts.Close)
	return ts.URL
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func benchmarkMakeCall(b *testing.B, target string, opts ...Option) {
	b.Helper()

	client, err := New(opts...)
	if err != nil {
		b.Fatalf("new client: %v", err)
	}
	b.Cleanup(client.Close)

	ctx := context.Background()
	call := Call{URL: target}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := client.MakeCall(ctx, call); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

// BenchmarkStandardClient measures the baseline performance of the standard http.Client.
func BenchmarkStandardClient(b *testing.B) {
	target := newBenchmarkServer(b, okHandler)
	client := &http.Client{}
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		resp, err := client.Do(req)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// BenchmarkMakeCall_Default measures MakeCall without network tracing.
func BenchmarkMakeCall_Default(b *testing.B) {
	benchmarkMakeCall(b, newBenchmarkServer(b, okHandler), WithDisableNetworkTrace())
}

// BenchmarkMakeCall_NetworkTrace measures the cost of httptrace timings.
func BenchmarkMakeCall_NetworkTrace(b *testing.B) {
	benchmarkMakeCall(b, newBenchmarkServer(b, okHandler))
}

// BenchmarkMakeCall_WithBreaker measures overhead of the circuit breaker.
func BenchmarkMakeCall_WithBreaker(b *testing.B) {
	benchmarkMakeCall(b, newBenchmarkServer(b, okHandler),
		WithDisableNetworkTrace(),
		WithBreaker(DefaultBreakerConfig()),
	)
}

// BenchmarkMakeCall_WithRateLimit measures overhead of a limiter that never blocks.
func BenchmarkMakeCall_WithRateLimit(b *testing.B) {
	benchmarkMakeCall(b, newBenchmarkServer(b, okHandler),
		WithDisableNetworkTrace(),
		WithRateLimit(RateLimitConfig{RequestsPerSecond: 1e9, Burst: 1e6, WaitOnLimit: true}),
	)
}

// BenchmarkMakeCall_Debug measures debug logging with cURL rendering.
func BenchmarkMakeCall_Debug(b *testing.B) {
	benchmarkMakeCall(b, newBenchmarkServer(b, okHandler),
		WithDisableNetworkTrace(),
		WithLogger(zerolog.New(io.Discard)),
		WithDebug(true),
		WithGenerateCurl(true),
	)
}

// BenchmarkMakeCall_GzipDecoding measures decompression and charset decoding
// of a 64KB body.
func BenchmarkMakeCall_GzipDecoding(b *testing.B) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(bytes.Repeat([]byte("runtime body text "), 64*1024/18))
	_ = zw.Close()
	payload := buf.Bytes()

	target := newBenchmarkServer(b, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(payload)
	})

	benchmarkMakeCall(b, target, WithDisableNetworkTrace())
}

// BenchmarkBuildRequest measures URL normalization and header merging.
func BenchmarkBuildRequest(b *testing.B) {
	ctx := context.Background()
	call := Call{
		URL:    "https://user:pw@api.example.com:443/v1/items?sort=asc&filter=a,b",
		Query:  []QueryParam{{Key: "page", Values: []string{"2"}}, {Key: "tag", Values: []string{"x", "y"}}},
		Method: http.MethodPost,
		Headers: Headers{
			{Name: "X-Api-Key", Value: "k"},
			{Name: "content-type", Value: "application/json"},
		},
		Body: StringContent(`{"a":1}`),
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, cerr := BuildRequest(ctx, call); cerr != nil {
			b.Fatalf("unexpected error: %v", cerr)
		}
	}
}
