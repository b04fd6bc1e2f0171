package trust

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/remora/internal/logging"
)

// Options configure an Evaluator.
type Options struct {
	Store   Store
	Decider Decider
	// Roots overrides the system pool; nil uses the system roots.
	Roots  *x509.CertPool
	Now    func() time.Time
	Logger *slog.Logger
}

// Evaluator runs the trust algorithm for TLS connections.
type Evaluator struct {
	store   Store
	decider Decider
	roots   *x509.CertPool
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[Identity]error
}

// NewEvaluator builds an Evaluator. A nil Store falls back to a MemoryStore.
func NewEvaluator(opts Options) *Evaluator {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		store:   store,
		decider: opts.Decider,
		roots:   opts.Roots,
		now:     now,
		logger:  logging.NewComponentLogger(opts.Logger, "trust"),
		pending: make(map[Identity]error),
	}
}

// Store exposes the pin store backing the evaluator.
func (e *Evaluator) Store() Store {
	return e.store
}

// Evaluate decides whether chain may be used for identity. allowUntrusted
// enables pinning and prompting; without it only standard validation counts.
func (e *Evaluator) Evaluate(ctx context.Context, identity Identity, chain []*x509.Certificate, allowUntrusted bool) (Disposition, error) {
	identity = identity.Normalized()
	if len(chain) == 0 {
		return Cancel, ErrNoCertificate
	}
	leaf := chain[0]

	verifyErr := e.verify(identity, chain)
	if verifyErr == nil {
		return UseCredential, nil
	}
	if !allowUntrusted {
		return Cancel, fmt.Errorf("certificate for %s is not trusted: %w", identity, verifyErr)
	}

	fingerprint := Fingerprint(leaf)
	pin, found, err := e.store.Lookup(ctx, identity)
	if err != nil {
		return Cancel, fmt.Errorf("lookup pinned certificate: %w", err)
	}
	if found && pin.Fingerprint == fingerprint {
		e.logger.Debug("pinned certificate accepted",
			slog.String("identity", identity.String()),
			slog.String("fingerprint", fingerprint))
		return UseCredential, nil
	}

	challenge := Challenge{
		Identity:    identity,
		Reason:      ReasonUntrustedCertificate,
		Certificate: Describe(leaf),
		Cause:       verifyErr,
	}
	if found {
		challenge.PreviousFingerprint = pin.Fingerprint
	}
	if e.decider == nil {
		return Cancel, fmt.Errorf("certificate for %s is not trusted and no decider is configured: %w", identity, verifyErr)
	}

	decision, err := e.decider.Decide(ctx, challenge)
	if err != nil {
		return Cancel, fmt.Errorf("trust decision: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Cancel, err
	}

	switch decision {
	case DecisionTrustPermanently:
		newPin := Pin{
			Identity:    identity,
			Fingerprint: fingerprint,
			Subject:     challenge.Certificate.Subject,
			Issuer:      challenge.Certificate.Issuer,
			NotAfter:    challenge.Certificate.NotAfter,
			PinnedAt:    e.now().UTC(),
		}
		if err := e.store.Save(ctx, newPin); err != nil {
			return Cancel, fmt.Errorf("save pinned certificate: %w", err)
		}
		e.clearPending(identity)
		e.logger.Info("certificate pinned",
			slog.String("identity", identity.String()),
			slog.String("fingerprint", fingerprint))
		return UseCredential, nil
	default:
		declined := &DeclinedError{Challenge: challenge}
		e.mu.Lock()
		e.pending[identity] = declined
		e.mu.Unlock()
		e.logger.Info("certificate declined",
			slog.String("identity", identity.String()),
			slog.String("fingerprint", fingerprint))
		return Cancel, declined
	}
}

// TakePendingError returns and clears the declined-certificate error recorded
// for identity, if any.
func (e *Evaluator) TakePendingError(identity Identity) error {
	identity = identity.Normalized()
	e.mu.Lock()
	defer e.mu.Unlock()
	err, ok := e.pending[identity]
	if !ok {
		return nil
	}
	delete(e.pending, identity)
	return err
}

func (e *Evaluator) clearPending(identity Identity) {
	e.mu.Lock()
	delete(e.pending, identity)
	e.mu.Unlock()
}

func (e *Evaluator) verify(identity Identity, chain []*x509.Certificate) error {
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}
	_, err := chain[0].Verify(x509.VerifyOptions{
		Roots:         e.roots,
		Intermediates: intermediates,
		DNSName:       identity.Host,
		CurrentTime:   e.now(),
	})
	return err
}

// TLSConfig returns a client TLS configuration that delegates certificate
// validation to Evaluate. ctx bounds any pending trust decision.
func (e *Evaluator) TLSConfig(ctx context.Context, identity Identity, allowUntrusted bool) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: identity.Host,
		// Chain and hostname validation run in VerifyConnection.
		InsecureSkipVerify: true,
		VerifyConnection: func(state tls.ConnectionState) error {
			disposition, err := e.Evaluate(ctx, identity, state.PeerCertificates, allowUntrusted)
			if err != nil {
				return err
			}
			if disposition != UseCredential {
				return errors.New("certificate rejected")
			}
			return nil
		},
	}
}
