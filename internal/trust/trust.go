// Package trust decides whether remora may talk to a daemon presenting a
// certificate that fails standard validation.
//
// Publicly trusted chains are accepted without interaction. Otherwise the
// leaf certificate's SHA-256 fingerprint is compared against a pin stored for
// the connection identity; a match is accepted silently. Anything else is
// handed to a Decider (normally a UI prompt), which may pin the certificate
// permanently or deny it. A denial is kept as a pending error so the caller
// can report it instead of the generic handshake failure it causes.
package trust

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Identity keys a pinned fingerprint.
type Identity struct {
	Host     string
	Port     int
	IsSecure bool
}

// Normalized lowercases the host so lookups are case-insensitive.
func (i Identity) Normalized() Identity {
	i.Host = strings.ToLower(strings.TrimSpace(i.Host))
	return i
}

func (i Identity) String() string {
	scheme := "http"
	if i.IsSecure {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Pin is a certificate fingerprint the user chose to trust.
type Pin struct {
	Identity    Identity
	Fingerprint string
	Subject     string
	Issuer      string
	NotAfter    time.Time
	PinnedAt    time.Time
}

// Reason explains why a challenge was raised.
type Reason string

const ReasonUntrustedCertificate Reason = "untrusted_certificate"

// CertificateInfo is the metadata shown to the user when deciding.
type CertificateInfo struct {
	Subject     string
	Issuer      string
	DNSNames    []string
	NotBefore   time.Time
	NotAfter    time.Time
	Fingerprint string
	SelfSigned  bool
}

// Challenge is handed to a Decider.
type Challenge struct {
	Identity    Identity
	Reason      Reason
	Certificate CertificateInfo
	// PreviousFingerprint is set when a different certificate was pinned.
	PreviousFingerprint string
	// Cause is the standard validation failure.
	Cause error
}

// Decision is the user's answer to a Challenge.
type Decision int

const (
	DecisionDeny Decision = iota
	DecisionTrustPermanently
)

func (d Decision) String() string {
	if d == DecisionTrustPermanently {
		return "trust_permanently"
	}
	return "deny"
}

// Decider answers trust challenges. Decide may block until the user responds
// and must return when ctx is cancelled.
type Decider interface {
	Decide(ctx context.Context, challenge Challenge) (Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, challenge Challenge) (Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, challenge Challenge) (Decision, error) {
	return f(ctx, challenge)
}

// Disposition is the outcome of evaluating a certificate chain.
type Disposition int

const (
	Cancel Disposition = iota
	UseCredential
)

func (d Disposition) String() string {
	if d == UseCredential {
		return "use_credential"
	}
	return "cancel"
}

var (
	// ErrUserDeclined marks a certificate the user refused to trust.
	ErrUserDeclined = errors.New("certificate declined by user")
	// ErrNoCertificate is returned when the peer presented no certificate.
	ErrNoCertificate = errors.New("no peer certificate presented")
)

// DeclinedError carries the challenge the user declined.
type DeclinedError struct {
	Challenge Challenge
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("%s: %s (fingerprint %s)", ErrUserDeclined, e.Challenge.Identity, FormatFingerprint(e.Challenge.Certificate.Fingerprint))
}

func (e *DeclinedError) Is(target error) bool {
	return target == ErrUserDeclined
}

// Fingerprint returns the lowercase hex SHA-256 of the certificate's DER bytes.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// FormatFingerprint renders a hex fingerprint as colon-separated uppercase pairs.
func FormatFingerprint(fp string) string {
	fp = strings.ToUpper(fp)
	if len(fp)%2 != 0 {
		return fp
	}
	pairs := make([]string, 0, len(fp)/2)
	for i := 0; i < len(fp); i += 2 {
		pairs = append(pairs, fp[i:i+2])
	}
	return strings.Join(pairs, ":")
}

// Describe extracts display metadata from a leaf certificate.
func Describe(cert *x509.Certificate) CertificateInfo {
	return CertificateInfo{
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		DNSNames:    append([]string(nil), cert.DNSNames...),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		Fingerprint: Fingerprint(cert),
		SelfSigned:  cert.CheckSignatureFrom(cert) == nil,
	}
}
