package main

import (
	"context"
	"testing"
	"time"

	"github.com/five82/remora/internal/trust"
)

func TestTrustListAndForget(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, nil, nil, "trust", "list")
	if err != nil {
		t.Fatalf("trust list: %v", err)
	}
	requireContains(t, out, "No pinned certificates")

	store, err := trust.OpenSQLiteStore(env.trustDB)
	if err != nil {
		t.Fatalf("open trust store: %v", err)
	}
	err = store.Save(context.Background(), trust.Pin{
		Identity:    trust.Identity{Host: "daemon.local", Port: 9091},
		Fingerprint: "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12",
		Subject:     "CN=daemon.local",
		Issuer:      "CN=daemon.local",
		NotAfter:    time.Now().Add(90 * 24 * time.Hour),
		PinnedAt:    time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("save pin: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close trust store: %v", err)
	}

	out, _, err = runCLI(t, env, nil, nil, "trust", "list")
	if err != nil {
		t.Fatalf("trust list: %v", err)
	}
	requireContains(t, out, "http://daemon.local:9091")
	requireContains(t, out, "AB:12:CD:34:EF:56:AB:12")
	requireContains(t, out, "CN=daemon.local")

	out, _, err = runCLI(t, env, nil, nil, "trust", "forget")
	if err != nil {
		t.Fatalf("trust forget: %v", err)
	}
	requireContains(t, out, "Forgot pinned certificate for http://daemon.local:9091")

	out, _, err = runCLI(t, env, nil, nil, "trust", "forget", "nas")
	if err != nil {
		t.Fatalf("second trust forget: %v", err)
	}
	requireContains(t, out, "No pinned certificate for")

	if _, _, err := runCLI(t, env, nil, nil, "trust", "forget", "missing"); err == nil {
		t.Fatal("trust forget for an unknown server returned nil error")
	}
}

func TestFormatExpiry(t *testing.T) {
	if got := formatExpiry(time.Time{}); got != "-" {
		t.Fatalf("formatExpiry(zero) = %q", got)
	}
	past := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := formatExpiry(past); got != "2020-01-02 (expired)" {
		t.Fatalf("formatExpiry(past) = %q", got)
	}
}
