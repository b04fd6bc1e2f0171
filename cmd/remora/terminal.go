package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/five82/remora/internal/trust"
)

func isTerminal(v any) bool {
	file, ok := v.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// readSecret reads one line from in without echo when in is a terminal.
func readSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		secret, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// terminalDecider asks about untrusted certificates on a line-oriented
// terminal.
type terminalDecider struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalDecider(in io.Reader, out io.Writer) *terminalDecider {
	return &terminalDecider{in: bufio.NewReader(in), out: out}
}

func (d *terminalDecider) Decide(ctx context.Context, challenge trust.Challenge) (trust.Decision, error) {
	fmt.Fprintf(d.out, "\nThe certificate presented by %s is not trusted.\n", challenge.Identity)
	if challenge.Cause != nil {
		fmt.Fprintf(d.out, "  Reason:  %v\n", challenge.Cause)
	}
	fmt.Fprintf(d.out, "  SHA-256: %s\n", trust.FormatFingerprint(challenge.Certificate.Fingerprint))
	if challenge.PreviousFingerprint != "" {
		fmt.Fprintf(d.out, "  WARNING: this differs from the pinned certificate %s\n", trust.FormatFingerprint(challenge.PreviousFingerprint))
	}
	fmt.Fprint(d.out, "Trust this certificate permanently? [y/N] ")

	answers := make(chan string, 1)
	go func() {
		line, _ := d.in.ReadString('\n')
		answers <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(d.out)
		return trust.DecisionDeny, ctx.Err()
	case line := <-answers:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return trust.DecisionTrustPermanently, nil
		default:
			return trust.DecisionDeny, nil
		}
	}
}
