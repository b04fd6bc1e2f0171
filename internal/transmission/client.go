package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/remora/internal/clock"
	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/trust"
)

const (
	defaultMaxRetries          = 3
	defaultRetryBaseDelay      = 500 * time.Millisecond
	defaultRetryMaxDelay       = 8 * time.Second
	defaultMaxSessionConflicts = 3
	maxResponseBytes           = 64 << 20
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PendingErrorSource reports a failure recorded out of band for a TLS
// identity, such as a certificate the user declined.
type PendingErrorSource interface {
	TakePendingError(identity trust.Identity) error
}

// Config controls a Client.
type Config struct {
	// Endpoint is the full RPC URL, e.g. http://localhost:9091/transmission/rpc.
	Endpoint string
	Username string
	Password string

	HTTPClient Doer
	Clock      clock.Clock
	Logger     *slog.Logger

	// MaxRetries bounds retries of transient network failures. Negative
	// disables retries.
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// MaxSessionConflicts is the number of consecutive 409 responses that
	// ends a call with ErrSessionConflict.
	MaxSessionConflicts int

	// Trust is consulted when a request fails so a declined certificate is
	// reported instead of the handshake error it caused.
	Trust     PendingErrorSource
	UserAgent string
}

// Client talks to one Transmission daemon. It is safe for concurrent use.
type Client struct {
	endpoint      *url.URL
	identity      trust.Identity
	authorization string
	http          Doer
	clock         clock.Clock
	logger        *slog.Logger
	trust         PendingErrorSource
	userAgent     string

	maxRetries     int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	maxConflicts   int

	tag atomic.Int64

	mu         sync.Mutex
	token      string
	rpcVersion int
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	endpoint, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: scheme must be http or https", cfg.Endpoint)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint %q: missing host", cfg.Endpoint)
	}

	client := &Client{
		endpoint:       endpoint,
		identity:       identityFor(endpoint),
		http:           cfg.HTTPClient,
		clock:          cfg.Clock,
		logger:         logging.NewComponentLogger(cfg.Logger, "transmission"),
		trust:          cfg.Trust,
		userAgent:      cfg.UserAgent,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		maxConflicts:   cfg.MaxSessionConflicts,
	}
	if client.http == nil {
		client.http = &http.Client{Timeout: 30 * time.Second}
	}
	if client.clock == nil {
		client.clock = clock.Real{}
	}
	if client.maxRetries == 0 {
		client.maxRetries = defaultMaxRetries
	}
	if client.maxRetries < 0 {
		client.maxRetries = 0
	}
	if client.retryBaseDelay <= 0 {
		client.retryBaseDelay = defaultRetryBaseDelay
	}
	if client.retryMaxDelay <= 0 {
		client.retryMaxDelay = defaultRetryMaxDelay
	}
	if client.maxConflicts <= 0 {
		client.maxConflicts = defaultMaxSessionConflicts
	}
	if client.userAgent == "" {
		client.userAgent = "remora"
	}
	if cfg.Username != "" || cfg.Password != "" {
		raw := cfg.Username + ":" + cfg.Password
		client.authorization = "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	}
	return client, nil
}

// IdentityForEndpoint returns the TLS identity for an RPC URL.
func IdentityForEndpoint(endpoint string) (trust.Identity, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return trust.Identity{}, fmt.Errorf("parse endpoint: %w", err)
	}
	return identityFor(parsed), nil
}

func identityFor(endpoint *url.URL) trust.Identity {
	secure := endpoint.Scheme == "https"
	port, err := strconv.Atoi(endpoint.Port())
	if err != nil || port == 0 {
		port = 80
		if secure {
			port = 443
		}
	}
	return trust.Identity{Host: endpoint.Hostname(), Port: port, IsSecure: secure}.Normalized()
}

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Identity returns the TLS identity of the endpoint.
func (c *Client) Identity() trust.Identity {
	return c.identity
}

// SessionID returns the last session token received from the daemon.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// RPCVersion returns the version recorded by the last successful handshake,
// or zero.
func (c *Client) RPCVersion() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rpcVersion
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) setRPCVersion(version int) {
	c.mu.Lock()
	c.rpcVersion = version
	c.mu.Unlock()
}

// Send performs one logical RPC call and returns the raw response envelope.
// A null args value omits the arguments member. The response result is not
// inspected.
func (c *Client) Send(ctx context.Context, method string, args jsonvalue.Value) (Response, error) {
	tag := c.tag.Add(1)
	request := Request{Method: method, Tag: &tag}
	if !args.IsNull() {
		request.Arguments = &args
	}
	body, err := json.Marshal(request)
	if err != nil {
		return Response{}, newError(ErrUnknown, method, "encode request", err)
	}

	conflicts := 0
	retries := 0
	for {
		result, err := c.attempt(ctx, method, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
				c.logger.Debug("rpc request cancelled", slog.String("method", method), logging.Error(err))
				if ctxErr == nil {
					ctxErr = context.Canceled
				}
				return Response{}, fmt.Errorf("%s: request cancelled: %w", method, ctxErr)
			}
			if pending := c.takePendingError(); pending != nil {
				return Response{}, pending
			}
			if !isTransient(err) {
				return Response{}, newError(ErrUnknown, method, "", err)
			}
			if retries >= c.maxRetries {
				logging.WarnWithContext(c.logger, "rpc retries exhausted",
					"rpc_network_unavailable",
					"check that the daemon is running and reachable",
					"request failed",
					slog.String("method", method),
					slog.Int("retries", retries),
					logging.Error(err))
				return Response{}, newError(ErrNetworkUnavailable, method, fmt.Sprintf("gave up after %d retries", retries), err)
			}
			delay := c.backoff(retries)
			retries++
			conflicts = 0
			c.logger.Debug("rpc transient failure, retrying",
				slog.String("method", method),
				slog.Int("attempt", retries),
				slog.Duration("delay", delay),
				logging.Error(err))
			if err := c.clock.Sleep(ctx, delay); err != nil {
				c.logger.Debug("rpc request cancelled during backoff", slog.String("method", method))
				return Response{}, fmt.Errorf("%s: request cancelled: %w", method, err)
			}
			continue
		}

		switch {
		case result.status == http.StatusConflict:
			conflicts++
			token := result.header.Get(SessionIDHeader)
			if token == "" {
				return Response{}, newError(ErrSessionConflict, method, "409 response without session id", nil)
			}
			c.setToken(token)
			if conflicts >= c.maxConflicts {
				return Response{}, newError(ErrSessionConflict, method, fmt.Sprintf("%d consecutive session conflicts", conflicts), nil)
			}
			c.logger.Debug("session id refreshed", slog.String("method", method), slog.Int("conflicts", conflicts))
			continue
		case result.status == http.StatusUnauthorized:
			return Response{}, &Error{Kind: ErrUnauthorized, Method: method, StatusCode: result.status}
		case result.status < 200 || result.status > 299:
			return Response{}, &Error{Kind: ErrHTTPStatus, Method: method, StatusCode: result.status}
		}

		if len(bytes.TrimSpace(result.body)) == 0 {
			return Response{}, newError(ErrDecodingFailed, method, EmptyBodyDetails, nil)
		}
		var response Response
		if err := json.Unmarshal(result.body, &response); err != nil {
			return Response{}, newError(ErrDecodingFailed, method, err.Error(), err)
		}
		return response, nil
	}
}

type httpResult struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) attempt(ctx context.Context, method string, body []byte) (httpResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return httpResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if token := c.SessionID(); token != "" {
		req.Header.Set(SessionIDHeader, token)
	}
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.Debug("rpc request",
			slog.String("method", method),
			slog.String("url", c.endpoint.Redacted()),
			slog.String("headers", RedactHeaders(req.Header)),
			slog.String("body", RedactBody(body)))
	}

	started := c.clock.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return httpResult{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return httpResult{}, err
	}

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		c.logger.Debug("rpc response",
			slog.String("method", method),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", c.clock.Now().Sub(started)),
			slog.String("headers", RedactHeaders(resp.Header)),
			slog.String("body", RedactBody(data)))
	}
	return httpResult{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *Client) takePendingError() error {
	if c.trust == nil || !c.identity.IsSecure {
		return nil
	}
	return c.trust.TakePendingError(c.identity)
}
