package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/remora/internal/trust"
)

type decideResult struct {
	decision trust.Decision
	err      error
}

func testChallenge() trust.Challenge {
	return trust.Challenge{
		Identity: trust.Identity{Host: "seedbox.lan", Port: 9091, IsSecure: true},
		Reason:   trust.ReasonUntrustedCertificate,
		Certificate: trust.CertificateInfo{
			Subject:     "CN=seedbox.lan",
			Issuer:      "CN=seedbox.lan",
			Fingerprint: strings.Repeat("ab", 32),
			SelfSigned:  true,
		},
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func decideAsync(ctx context.Context, p *TrustPrompter) <-chan decideResult {
	out := make(chan decideResult, 1)
	go func() {
		decision, err := p.Decide(ctx, testChallenge())
		out <- decideResult{decision, err}
	}()
	return out
}

func waitDecision(t *testing.T, ch <-chan decideResult) decideResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("Decide did not return")
		return decideResult{}
	}
}

func promptModel(t *testing.T, p *TrustPrompter) Model {
	t.Helper()
	ctx := context.Background()
	m := New(Options{Context: ctx, Prompter: p})
	msg := p.waitForChallenge(ctx)()
	challenge, ok := msg.(trustChallengeMsg)
	if !ok {
		t.Fatalf("waitForChallenge returned %T, want trustChallengeMsg", msg)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	next, _ = next.(Model).Update(challenge)
	m = next.(Model)
	if m.modal == nil {
		t.Fatal("challenge did not open the modal")
	}
	return m
}

func TestTrustPrompter_TrustKey(t *testing.T) {
	p := NewTrustPrompter()
	result := decideAsync(context.Background(), p)
	m := promptModel(t, p)

	view := m.View()
	if !strings.Contains(view, "Untrusted certificate") || !strings.Contains(view, "AB:AB") {
		t.Fatalf("modal view missing challenge details:\n%s", view)
	}

	// unrelated keys leave the modal open
	next, _ := m.Update(runeKey('s'))
	if next.(Model).modal == nil {
		t.Fatal("modal closed on unrelated key")
	}

	next, cmd := next.(Model).Update(runeKey('y'))
	if next.(Model).modal != nil {
		t.Fatal("modal still open after answering")
	}
	if cmd == nil {
		t.Fatal("answering did not resume waiting for challenges")
	}
	res := waitDecision(t, result)
	if res.err != nil || res.decision != trust.DecisionTrustPermanently {
		t.Fatalf("Decide = %v, %v; want %v", res.decision, res.err, trust.DecisionTrustPermanently)
	}
}

func TestTrustPrompter_DenyKey(t *testing.T) {
	p := NewTrustPrompter()
	result := decideAsync(context.Background(), p)
	m := promptModel(t, p)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	res := waitDecision(t, result)
	if res.err != nil || res.decision != trust.DecisionDeny {
		t.Fatalf("Decide = %v, %v; want deny", res.decision, res.err)
	}
}

func TestTrustPrompter_CancelledBeforeUI(t *testing.T) {
	p := NewTrustPrompter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := p.Decide(ctx, testChallenge())
	if !errors.Is(err, context.Canceled) || decision != trust.DecisionDeny {
		t.Fatalf("Decide = %v, %v; want deny, context.Canceled", decision, err)
	}
}

func TestTrustPrompter_CancelledWhileWaiting(t *testing.T) {
	p := NewTrustPrompter()
	ctx, cancel := context.WithCancel(context.Background())
	result := decideAsync(ctx, p)
	m := promptModel(t, p)

	cancel()
	res := waitDecision(t, result)
	if !errors.Is(res.err, context.Canceled) || res.decision != trust.DecisionDeny {
		t.Fatalf("Decide = %v, %v; want deny, context.Canceled", res.decision, res.err)
	}

	// a late answer must not block the UI
	done := make(chan struct{})
	go func() {
		m.Update(runeKey('y'))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("answering an abandoned challenge blocked")
	}
}

func TestWrapFingerprint(t *testing.T) {
	full := trust.FormatFingerprint(strings.Repeat("0f", 32))
	wrapped := wrapFingerprint(full)
	lines := strings.Split(wrapped, "\n")
	if len(lines) != 2 || len(lines[0]) != len(lines[1]) {
		t.Fatalf("wrapFingerprint = %q, want two equal lines", wrapped)
	}
	if got := wrapFingerprint("AB:CD"); got != "AB:CD" {
		t.Fatalf("wrapFingerprint short = %q", got)
	}
}
