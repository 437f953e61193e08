package httpclient

import (
	"time"
)

// PoolStats provides a snapshot of connection pool configuration.
// This is useful for debugging and monitoring connection pool settings.
//
// Example usage:
//
//	stats := client.PoolStats()
//	fmt.Printf("Max idle conns: %d\n", stats.MaxIdleConns)
//	fmt.Printf("Idle conn timeout: %s\n", stats.IdleConnTimeout)
//	fmt.Printf("Max conn lifetime: %s\n", stats.MaxConnLifetime)
type PoolStats struct {
	// MaxIdleConns is the maximum idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost is the maximum total connections per host.
	// Zero means unlimited.
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept before closing.
	IdleConnTimeout time.Duration

	// MaxConnLifetime is the age after which a connection takes no new
	// requests.
	// Zero means never.
	MaxConnLifetime time.Duration

	// MaxResponseBytes is the response body ceiling.
	MaxResponseBytes int64

	// DisableCompression is always true: bodies are decoded by the client,
	// not by net/http.
	DisableCompression bool
}

// PoolStats returns the effective connection pool configuration.
func (t *Transport) PoolStats() PoolStats {
	return PoolStats{
		MaxIdleConns:        t.base.MaxIdleConns,
		MaxIdleConnsPerHost: t.base.MaxIdleConnsPerHost,
		MaxConnsPerHost:     t.base.MaxConnsPerHost,
		IdleConnTimeout:     t.base.IdleConnTimeout,
		MaxConnLifetime:     t.cfg.httpConfig.MaxConnLifetime,
		MaxResponseBytes:    t.cfg.httpConfig.MaxResponseBytes,
		DisableCompression:  t.base.DisableCompression,
	}
}

// PoolStats returns the connection pool configuration of the client's
// Transport.
func (c *Client) PoolStats() PoolStats {
	return c.transport.PoolStats()
}
