package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/remora/internal/trust"
)

// TrustPrompter answers certificate challenges through the TUI. Decide blocks
// until the user responds in the modal or ctx is done.
type TrustPrompter struct {
	requests chan trustRequest
}

type trustRequest struct {
	challenge trust.Challenge
	reply     chan trust.Decision
}

// NewTrustPrompter returns a prompter that is idle until the UI starts
// reading from it.
func NewTrustPrompter() *TrustPrompter {
	return &TrustPrompter{requests: make(chan trustRequest)}
}

// Decide implements trust.Decider.
func (p *TrustPrompter) Decide(ctx context.Context, challenge trust.Challenge) (trust.Decision, error) {
	req := trustRequest{challenge: challenge, reply: make(chan trust.Decision, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return trust.DecisionDeny, ctx.Err()
	}
	select {
	case decision := <-req.reply:
		return decision, nil
	case <-ctx.Done():
		return trust.DecisionDeny, ctx.Err()
	}
}

type trustChallengeMsg trustRequest

// waitForChallenge blocks until the evaluator raises a challenge.
func (p *TrustPrompter) waitForChallenge(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-p.requests:
			return trustChallengeMsg(req)
		case <-ctx.Done():
			return nil
		}
	}
}

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// trustModal shows a certificate challenge and sends the answer back to the
// waiting evaluator exactly once.
type trustModal struct {
	req trustRequest
}

func (m trustModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil, false
	}
	switch {
	case key.Matches(keyMsg, keys.Trust):
		m.answer(trust.DecisionTrustPermanently)
		return m, nil, true
	case key.Matches(keyMsg, keys.Deny):
		m.answer(trust.DecisionDeny)
		return m, nil, true
	}
	return m, nil, false
}

func (m trustModal) answer(decision trust.Decision) {
	m.req.reply <- decision
}

func (m trustModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	c := m.req.challenge

	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render("Untrusted certificate"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(c.Identity.String()))
	b.WriteString("\n\n")

	b.WriteString(styles.MutedText.Render("SHA-256"))
	b.WriteString("\n")
	b.WriteString(styles.AccentText.Render(wrapFingerprint(trust.FormatFingerprint(c.Certificate.Fingerprint))))
	b.WriteString("\n")

	if c.PreviousFingerprint != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render("The certificate changed since it was pinned."))
		b.WriteString("\n")
	}
	if c.Cause != nil {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render(c.Cause.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.SuccessText.Render("y"))
	b.WriteString(styles.Text.Render(" trust permanently   "))
	b.WriteString(styles.DangerText.Render("n"))
	b.WriteString(styles.Text.Render(" deny"))

	box := styles.Modal.Width(min(72, max(width-4, 20))).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// wrapFingerprint splits a colon-separated fingerprint over two lines.
func wrapFingerprint(fp string) string {
	pairs := strings.Split(fp, ":")
	if len(pairs) <= 16 {
		return fp
	}
	half := len(pairs) / 2
	return strings.Join(pairs[:half], ":") + "\n" + strings.Join(pairs[half:], ":")
}
