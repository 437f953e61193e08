package cli

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/runtimehttp/httpclient"
	"github.com/kroma-labs/runtimehttp/internal/config"
	"github.com/kroma-labs/runtimehttp/internal/telemetry"
)

// newClient builds the client described by cfg. cleanup closes the client
// and the Redis connection backing a shared breaker.
func newClient(
	cfg config.Config,
	tel *telemetry.Telemetry,
	logger zerolog.Logger,
	rt http.RoundTripper,
) (client *httpclient.Client, cleanup func(), err error) {
	opts := []httpclient.Option{
		httpclient.WithConfig(cfg.ClientConfig()),
		httpclient.WithServiceName(cfg.ServiceName),
		httpclient.WithMeterProvider(tel.MeterProvider),
		httpclient.WithLogger(logger),
		httpclient.WithDebug(cfg.Debug),
		httpclient.WithGenerateCurl(cfg.GenerateCurl),
		httpclient.WithProxyFromEnvironment(cfg.HTTP.ProxyFromEnvironment),
	}

	if cfg.HTTP.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.HTTP.ProxyURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid proxy_url: %w", err)
		}
		opts = append(opts, httpclient.WithProxyURL(proxyURL))
	}
	if cfg.HTTP.InsecureSkipVerify {
		opts = append(opts, httpclient.WithTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec
	}

	var rdb *redis.Client
	if bc := cfg.BreakerConfig(); bc != nil {
		if cfg.Breaker.RedisAddr != "" {
			rdb = redis.NewClient(&redis.Options{Addr: cfg.Breaker.RedisAddr})
			bc.Store = httpclient.NewRedisStore(rdb)
		}
		opts = append(opts, httpclient.WithBreaker(*bc))
	}
	if rl := cfg.RateLimitConfig(); rl != nil {
		opts = append(opts, httpclient.WithRateLimit(*rl))
	}
	if fc := cfg.FaultConfig(); fc != nil {
		opts = append(opts, httpclient.WithFaultInjection(*fc))
	}
	if rt != nil {
		opts = append(opts, httpclient.WithRoundTripper(rt))
	}

	closeRedis := func() {
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("redis close failed")
			}
		}
	}

	client, err = httpclient.New(opts...)
	if err != nil {
		closeRedis()
		return nil, nil, err
	}

	return client, func() {
		client.Close()
		closeRedis()
	}, nil
}
