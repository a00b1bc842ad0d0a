// Package transport builds the HTTP round trippers used by viewer clients and sinks.
//
// A transport pools connections, can cache DNS lookups and can transparently
// decode compressed responses (gzip, deflate, br, zstd, lz4).
//
//	rt, err := transport.New(transport.EnableDNSCache, transport.EnableDecompression)
//	client := &http.Client{Transport: rt}
//
// Tuning is read from the environment:
//
//   - HTTP_TRANSPORT_MAX_IDLE_CONNS: Maximum idle connections (default: 100)
//   - HTTP_TRANSPORT_IDLE_CONN_TIMEOUT: Idle connection timeout (default: 90s)
//   - HTTP_TRANSPORT_TLS_HANDSHAKE_TIMEOUT: TLS handshake timeout (default: 10s)
//   - HTTP_TRANSPORT_DIAL_TIMEOUT: Connection dial timeout (default: 30s)
//   - HTTP_TRANSPORT_DIAL_KEEPALIVE: TCP keep-alive duration (default: 30s)
package transport

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the tunables of a transport.
type Config struct {
	MaxIdleConns        int           `env:"HTTP_TRANSPORT_MAX_IDLE_CONNS"        envDefault:"100"`
	IdleConnTimeout     time.Duration `env:"HTTP_TRANSPORT_IDLE_CONN_TIMEOUT"     envDefault:"90s"`
	TLSHandshakeTimeout time.Duration `env:"HTTP_TRANSPORT_TLS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	DialTimeout         time.Duration `env:"HTTP_TRANSPORT_DIAL_TIMEOUT"          envDefault:"30s"`
	KeepAlive           time.Duration `env:"HTTP_TRANSPORT_DIAL_KEEPALIVE"        envDefault:"30s"`
}

// LoadConfig reads the transport configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse transport config: %w", err)
	}

	return cfg, nil
}

// Option toggles a transport feature.
type Option func(*options)

type options struct {
	disableConnectionPooling bool
	enableDNSCache           bool
	enableDecompression      bool
	logging                  bool
}

// DisableConnectionPooling disables keep-alives.
func DisableConnectionPooling(o *options) {
	o.disableConnectionPooling = true
}

// EnableDNSCache resolves hosts through a shared caching resolver.
func EnableDNSCache(o *options) {
	o.enableDNSCache = true
}

// EnableDecompression advertises and decodes every supported content encoding.
func EnableDecompression(o *options) {
	o.enableDecompression = true
}

// EnableLogging logs each request and response at debug level.
func EnableLogging(o *options) {
	o.logging = true
}

// New builds a round tripper configured from the environment.
func New(opts ...Option) (http.RoundTripper, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	return NewWithConfig(cfg, opts...), nil
}

// NewWithConfig builds a round tripper from an explicit configuration.
func NewWithConfig(cfg Config, opts ...Option) http.RoundTripper {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		DisableKeepAlives:   o.disableConnectionPooling,
	}

	if o.enableDNSCache {
		useDNSCacheDialer(base, cfg.DialTimeout, cfg.KeepAlive)
	}

	var rt http.RoundTripper = base

	// Logging sits below the decompressor so it sees the wire encoding.
	if o.logging {
		rt = NewLoggingTransport(rt, nil)
	}

	if o.enableDecompression {
		// The decompressor handles gzip itself.
		base.DisableCompression = true
		rt = NewDecompressor(rt)
	}

	return rt
}
