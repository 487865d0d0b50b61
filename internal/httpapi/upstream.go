package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// upstreamClient is shared across all forwarded requests. DNS lookups are
// cached and refreshed periodically so a long-lived process doesn't pay a
// resolver round trip per upstream call.
var upstreamClient = newUpstreamClient()

func newUpstreamClient() *http.Client {
	resolver := &dnscache.Resolver{}
	go refreshDNSCache(resolver)

	t := &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		},
	}
	return &http.Client{Transport: t, Timeout: 60 * time.Second}
}

func refreshDNSCache(resolver *dnscache.Resolver) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		resolver.Refresh(true)
	}
}
