// Package inspector implements the content-level admission checks of
// SPEC_FULL.md §4.5: a case-insensitive blacklist substring match against
// the raw request body, and an optional call out to an external PII
// classifier.
package inspector

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/dnscache"

	gateway "github.com/burgonet-eu/gateway/internal"
)

// Inspector evaluates blacklist and PII policy for a model against a
// buffered request body.
type Inspector struct {
	http *http.Client
}

// New builds an Inspector with a connection-pooled, DNS-cached HTTP client
// tuned for the short-lived requests the PII microservice receives.
func New(resolver *dnscache.Resolver) *Inspector {
	t := &http.Transport{
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
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
		}
	}
	return &Inspector{http: &http.Client{Transport: t, Timeout: 10 * time.Second}}
}

// CheckBlacklist lowercases body as UTF-8 (invalid sequences become the
// replacement character) and reports whether any non-empty trimmed word of
// words appears as a substring, also lowercased.
func CheckBlacklist(body []byte, words []string) error {
	lowered := strings.ToLower(toValidUTF8(body))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(w)) {
			return fmt.Errorf("%w: blacklist word %q", gateway.ErrBlacklisted, w)
		}
	}
	return nil
}

func toValidUTF8(body []byte) string {
	if utf8.Valid(body) {
		return string(body)
	}
	return strings.ToValidUTF8(string(body), string(utf8.RuneError))
}

// piiVerdict is the expected shape of the PII microservice's JSON response.
// Any field beyond a boolean positive classification is ignored.
type piiVerdict struct {
	Detected bool `json:"detected"`
}

// CheckPII posts the raw request body to url and fails closed: a network
// error or a response that cannot be decoded is ErrPIIServiceDown (HTTP
// 500), never a silent admit. A positive classification is ErrPIIDetected
// (HTTP 403).
func (i *Inspector) CheckPII(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", gateway.ErrPIIServiceDown, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrPIIServiceDown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", gateway.ErrPIIServiceDown, resp.StatusCode)
	}

	var verdict piiVerdict
	if err := decodeJSON(resp.Body, &verdict); err != nil {
		return fmt.Errorf("%w: decode response: %v", gateway.ErrPIIServiceDown, err)
	}
	if verdict.Detected {
		return gateway.ErrPIIDetected
	}
	return nil
}

// Inspect runs the full content policy for a model against a buffered
// request body: blacklist first, then PII if configured.
func (i *Inspector) Inspect(ctx context.Context, model gateway.Model, body []byte) error {
	if err := CheckBlacklist(body, model.BlacklistWords); err != nil {
		return err
	}
	if model.PIIProtectionURL == "" {
		return nil
	}
	return i.CheckPII(ctx, model.PIIProtectionURL, body)
}
