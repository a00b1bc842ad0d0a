package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// dnsResolver is shared by every transport that enables DNS caching.
var dnsResolver = &dnscache.Resolver{} //nolint:gochecknoglobals

// RefreshDNSCache drops unused entries and refreshes the rest. Long-running
// processes call it periodically.
func RefreshDNSCache() {
	dnsResolver.Refresh(true)
}

// useDNSCacheDialer makes trans resolve hosts through the caching resolver,
// trying each returned address in turn.
func useDNSCacheDialer(trans *http.Transport, timeout, keepAlive time.Duration) {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: keepAlive,
	}

	trans.DialContext = func(ctx context.Context, network string, addr string) (conn net.Conn, err error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := dnsResolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		for _, ip := range ips {
			conn, err = dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
		}

		return nil, err
	}
}
