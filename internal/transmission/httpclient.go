package transmission

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/five82/remora/internal/trust"
)

// HTTPOptions configure the production HTTP client.
type HTTPOptions struct {
	// Timeout bounds the wait for response headers once a request is written.
	// TLS trust prompts happen before that and are not bounded by it.
	Timeout        time.Duration
	Evaluator      *trust.Evaluator
	Identity       trust.Identity
	AllowUntrusted bool
}

// NewHTTPClient returns an *http.Client whose TLS connections are validated
// by opts.Evaluator. Without an evaluator the standard verification applies.
func NewHTTPClient(opts HTTPOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	if opts.Evaluator != nil {
		evaluator := opts.Evaluator
		identity := opts.Identity
		allowUntrusted := opts.AllowUntrusted
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			raw, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			cfg := evaluator.TLSConfig(ctx, identity, allowUntrusted)
			if host, _, err := net.SplitHostPort(addr); err == nil {
				cfg.ServerName = host
			}
			conn := tls.Client(raw, cfg)
			if err := conn.HandshakeContext(ctx); err != nil {
				_ = raw.Close()
				return nil, err
			}
			return conn, nil
		}
	}
	return &http.Client{Transport: transport}
}
