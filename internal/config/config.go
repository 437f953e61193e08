// Package config loads the httpcall configuration file.
//
// The file is YAML. Every field is optional and falls back to Default():
//
//	service_name: billing-runtime
//	http:
//	  timeout: 10s
//	  max_response_bytes: 1048576
//	breaker:
//	  enabled: true
//	  redis_addr: localhost:6379
//	rate_limit:
//	  requests_per_second: 50
//	  burst: 5
//	headers:
//	  X-Api-Key: secret
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kroma-labs/runtimehttp/httpclient"
)

// ServiceName is used when the file does not name the service.
const ServiceName = "httpcall"

// Config is the httpcall configuration.
type Config struct {
	// ServiceName labels metrics and spans.
	ServiceName string `yaml:"service_name"`

	// Debug logs every call.
	Debug bool `yaml:"debug"`

	// GenerateCurl adds a cURL command to debug logs.
	GenerateCurl bool `yaml:"generate_curl"`

	// UserAgent is sent unless the call sets its own.
	UserAgent string `yaml:"user_agent"`

	// CorrelationHeader names a header that receives a fresh UUID on every
	// call. Empty disables it.
	CorrelationHeader string `yaml:"correlation_header"`

	// Headers are sent with every call unless the call sets the same name.
	Headers map[string]string `yaml:"headers"`

	HTTP      HTTP      `yaml:"http"`
	Breaker   Breaker   `yaml:"breaker"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Fault     Fault     `yaml:"fault"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// HTTP maps onto httpclient.Config. Zero values keep the client default.
type HTTP struct {
	Timeout              time.Duration `yaml:"timeout"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	IdleConnTimeout      time.Duration `yaml:"idle_conn_timeout"`
	MaxConnLifetime      time.Duration `yaml:"max_conn_lifetime"`
	MaxResponseBytes     int64         `yaml:"max_response_bytes"`
	MaxIdleConns         int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost  int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost      int           `yaml:"max_conns_per_host"`
	ProxyURL             string        `yaml:"proxy_url"`
	ProxyFromEnvironment bool          `yaml:"proxy_from_environment"`
	InsecureSkipVerify   bool          `yaml:"insecure_skip_verify"`
}

// Breaker configures the circuit breaker. RedisAddr shares its state
// between processes.
type Breaker struct {
	Enabled             bool          `yaml:"enabled"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	Timeout             time.Duration `yaml:"timeout"`
	RedisAddr           string        `yaml:"redis_addr"`
}

// RateLimit caps the outbound request rate. Zero RequestsPerSecond
// disables it.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	FailFast          bool    `yaml:"fail_fast"`
}

// Fault injects latency and failures.
type Fault struct {
	Latency     time.Duration `yaml:"latency"`
	Jitter      time.Duration `yaml:"jitter"`
	ErrorRate   float64       `yaml:"error_rate"`
	TimeoutRate float64       `yaml:"timeout_rate"`
}

// Telemetry configures metric and trace export.
type Telemetry struct {
	// MetricsAddr serves Prometheus metrics, e.g. ":2112". Empty disables.
	MetricsAddr string `yaml:"metrics_addr"`

	// OTLPEndpoint receives spans over gRPC, e.g. "localhost:4317".
	// Empty disables tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		ServiceName: ServiceName,
		Breaker: Breaker{
			ConsecutiveFailures: httpclient.DefaultBreakerConfig().ConsecutiveFailures,
			Timeout:             httpclient.DefaultBreakerConfig().Timeout,
		},
		RateLimit: RateLimit{Burst: 1},
	}
}

// Load reads the YAML file at path on top of Default(). An empty path
// returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must not be negative"))
	}
	if c.HTTP.MaxResponseBytes < 0 {
		errs = append(errs, errors.New("http.max_response_bytes must not be negative"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_second must not be negative"))
	}
	for name, rate := range map[string]float64{
		"fault.error_rate":   c.Fault.ErrorRate,
		"fault.timeout_rate": c.Fault.TimeoutRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 1", name))
		}
	}
	if err := c.ClientConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ClientConfig returns httpclient.DefaultConfig() with the non-zero HTTP
// fields applied.
func (c Config) ClientConfig() httpclient.Config {
	out := httpclient.DefaultConfig()
	h := c.HTTP

	if h.Timeout > 0 {
		out.Timeout = h.Timeout
	}
	if h.DialTimeout > 0 {
		out.DialTimeout = h.DialTimeout
	}
	if h.IdleConnTimeout > 0 {
		out.IdleConnTimeout = h.IdleConnTimeout
	}
	if h.MaxConnLifetime > 0 {
		out.MaxConnLifetime = h.MaxConnLifetime
	}
	if h.MaxResponseBytes > 0 {
		out.MaxResponseBytes = h.MaxResponseBytes
	}
	if h.MaxIdleConns > 0 {
		out.MaxIdleConns = h.MaxIdleConns
	}
	if h.MaxIdleConnsPerHost > 0 {
		out.MaxIdleConnsPerHost = h.MaxIdleConnsPerHost
	}
	if h.MaxConnsPerHost > 0 {
		out.MaxConnsPerHost = h.MaxConnsPerHost
	}
	return out
}

// BreakerConfig returns the breaker settings, or nil when disabled. The
// shared store is left for the caller to attach.
func (c Config) BreakerConfig() *httpclient.BreakerConfig {
	if !c.Breaker.Enabled {
		return nil
	}
	bc := httpclient.DefaultBreakerConfig()
	if c.Breaker.ConsecutiveFailures > 0 {
		bc.ConsecutiveFailures = c.Breaker.ConsecutiveFailures
	}
	if c.Breaker.Timeout > 0 {
		bc.Timeout = c.Breaker.Timeout
	}
	return &bc
}

// RateLimitConfig returns the limiter settings, or nil when disabled.
func (c Config) RateLimitConfig() *httpclient.RateLimitConfig {
	if c.RateLimit.RequestsPerSecond <= 0 {
		return nil
	}
	return &httpclient.RateLimitConfig{
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		WaitOnLimit:       !c.RateLimit.FailFast,
	}
}

// FaultConfig returns the fault injection settings, or nil when nothing is
// injected.
func (c Config) FaultConfig() *httpclient.FaultConfig {
	fc := httpclient.FaultConfig{
		Latency:     c.Fault.Latency,
		Jitter:      c.Fault.Jitter,
		ErrorRate:   c.Fault.ErrorRate,
		TimeoutRate: c.Fault.TimeoutRate,
	}
	if !fc.Enabled() {
		return nil
	}
	return &fc
}

// DefaultHeaders returns Headers sorted by name.
func (c Config) DefaultHeaders() httpclient.Headers {
	if len(c.Headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.Headers))
	for name := range c.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(httpclient.Headers, 0, len(names))
	for _, name := range names {
		out = append(out, httpclient.Header{Name: name, Value: c.Headers[name]})
	}
	return out
}
