package transmission

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/trust"
)

func newTLSDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"result":"success","arguments":{"rpc-version":17,"version":"4.0.5"}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTLSClient(t *testing.T, endpoint string, evaluator *trust.Evaluator, allowUntrusted bool) *Client {
	t.Helper()
	identity, err := IdentityForEndpoint(endpoint)
	if err != nil {
		t.Fatalf("IdentityForEndpoint returned error: %v", err)
	}
	client, err := New(Config{
		Endpoint: endpoint,
		HTTPClient: NewHTTPClient(HTTPOptions{
			Timeout:        5 * time.Second,
			Evaluator:      evaluator,
			Identity:       identity,
			AllowUntrusted: allowUntrusted,
		}),
		Trust:      evaluator,
		MaxRetries: -1,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestHTTPClient_PinsTrustedCertificate(t *testing.T) {
	daemon := newTLSDaemon(t)
	endpoint := daemon.URL + "/transmission/rpc"

	var prompts atomic.Int32
	evaluator := trust.NewEvaluator(trust.Options{
		Roots: x509.NewCertPool(),
		Decider: trust.DeciderFunc(func(context.Context, trust.Challenge) (trust.Decision, error) {
			prompts.Add(1)
			return trust.DecisionTrustPermanently, nil
		}),
	})

	client := newTLSClient(t, endpoint, evaluator, true)
	if _, err := client.Send(context.Background(), MethodSessionGet, jsonvalue.Null()); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if prompts.Load() != 1 {
		t.Fatalf("prompts = %d, want 1", prompts.Load())
	}

	// A fresh transport must reuse the pin without prompting.
	second := newTLSClient(t, endpoint, evaluator, true)
	if _, err := second.Send(context.Background(), MethodSessionGet, jsonvalue.Null()); err != nil {
		t.Fatalf("Send with pinned certificate returned error: %v", err)
	}
	if prompts.Load() != 1 {
		t.Fatalf("prompts = %d, want 1 after pinning", prompts.Load())
	}
}

func TestHTTPClient_DeclinedCertificateIsAttributed(t *testing.T) {
	daemon := newTLSDaemon(t)
	endpoint := daemon.URL + "/transmission/rpc"

	evaluator := trust.NewEvaluator(trust.Options{
		Roots: x509.NewCertPool(),
		Decider: trust.DeciderFunc(func(context.Context, trust.Challenge) (trust.Decision, error) {
			return trust.DecisionDeny, nil
		}),
	})

	client := newTLSClient(t, endpoint, evaluator, true)
	_, err := client.Send(context.Background(), MethodSessionGet, jsonvalue.Null())
	if !errors.Is(err, trust.ErrUserDeclined) {
		t.Fatalf("error = %v, want ErrUserDeclined", err)
	}
	if errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("declined certificate reported as network failure: %v", err)
	}
	var declined *trust.DeclinedError
	if !errors.As(err, &declined) {
		t.Fatalf("error %T is not *trust.DeclinedError", err)
	}
	if declined.Challenge.Reason != trust.ReasonUntrustedCertificate {
		t.Fatalf("Reason = %q, want %q", declined.Challenge.Reason, trust.ReasonUntrustedCertificate)
	}
}

func TestHTTPClient_TrustedRootsSkipPrompt(t *testing.T) {
	daemon := newTLSDaemon(t)
	roots := x509.NewCertPool()
	roots.AddCert(daemon.Certificate())

	evaluator := trust.NewEvaluator(trust.Options{
		Roots: roots,
		Decider: trust.DeciderFunc(func(context.Context, trust.Challenge) (trust.Decision, error) {
			t.Error("decider called for a trusted chain")
			return trust.DecisionDeny, nil
		}),
	})

	client := newTLSClient(t, daemon.URL+"/transmission/rpc", evaluator, false)
	if _, err := client.Send(context.Background(), MethodSessionGet, jsonvalue.Null()); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}
