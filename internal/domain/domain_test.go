package domain

import "testing"

func TestParseTorrentStatus(t *testing.T) {
	for raw := 0; raw <= 6; raw++ {
		status, err := ParseTorrentStatus(raw)
		if err != nil {
			t.Fatalf("ParseTorrentStatus(%d) returned error: %v", raw, err)
		}
		if int(status) != raw {
			t.Fatalf("ParseTorrentStatus(%d) = %d", raw, status)
		}
	}
	for _, raw := range []int{-1, 7, 42} {
		if _, err := ParseTorrentStatus(raw); err == nil {
			t.Fatalf("ParseTorrentStatus(%d) returned nil error", raw)
		}
	}
	if StatusSeeding.String() != "seeding" {
		t.Fatalf("StatusSeeding.String() = %q", StatusSeeding.String())
	}
}

func TestParseFilePriority(t *testing.T) {
	if p, err := ParseFilePriority(-1); err != nil || p != PriorityLow {
		t.Fatalf("ParseFilePriority(-1) = %v, %v", p, err)
	}
	if _, err := ParseFilePriority(2); err == nil {
		t.Fatal("ParseFilePriority(2) returned nil error")
	}
}

func TestServerConfigEndpoint(t *testing.T) {
	cfg := ServerConfig{
		Connection: Connection{Host: "nas.local", Port: 9091},
		Security:   Security{Scheme: SchemeHTTPS},
	}
	if got := cfg.Endpoint(); got != "https://nas.local:9091/transmission/rpc" {
		t.Fatalf("Endpoint = %q", got)
	}
	cfg.Connection.Path = "custom/rpc"
	if got := cfg.Endpoint(); got != "https://nas.local:9091/custom/rpc" {
		t.Fatalf("Endpoint = %q", got)
	}
	cfg.Connection.Host = "::1"
	cfg.Security.Scheme = SchemeHTTP
	if got := cfg.Endpoint(); got != "http://[::1]:9091/custom/rpc" {
		t.Fatalf("Endpoint = %q", got)
	}
}

func TestServerRecordCredentialsKey(t *testing.T) {
	rec := ServerRecord{Host: "h", Port: 1, IsSecure: true, Username: "  alice "}
	key, ok := rec.CredentialsKey()
	if !ok || key.Username != "alice" || !key.IsSecure {
		t.Fatalf("CredentialsKey = %#v, %v", key, ok)
	}
	rec.Username = ""
	if _, ok := rec.CredentialsKey(); ok {
		t.Fatal("CredentialsKey should be absent without a username")
	}
}
