// Package offline persists the last torrent list and session state per
// server so remora can show something while the daemon is unreachable.
//
// An entry is addressed by server id and a fingerprint of the connection
// details and credentials. Reads only return sections younger than the TTL,
// and only when the fingerprint (and RPC version, if the caller asks) match
// exactly. Writing under a new fingerprint destroys the server's older
// entries.
package offline

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/five82/remora/internal/domain"
)

// Key addresses one cache envelope.
type Key struct {
	ServerID    string `json:"server_id"`
	Fingerprint string `json:"fingerprint"`
	// RPCVersion, when set, must match the stored envelope's version.
	RPCVersion *int `json:"rpc_version,omitempty"`
}

// WithRPCVersion returns a copy of k bound to version.
func (k Key) WithRPCVersion(version int) Key {
	k.RPCVersion = &version
	return k
}

// Fingerprint derives the cache fingerprint for a server's connection details
// and password. Everything except the password is case-folded.
func Fingerprint(record domain.ServerRecord, password string) string {
	fold := cases.Fold()
	scheme := string(domain.SchemeHTTP)
	if record.IsSecure {
		scheme = string(domain.SchemeHTTPS)
	}
	path := strings.TrimSpace(record.Path)
	if path == "" {
		path = domain.DefaultRPCPath
	}
	parts := []string{
		fold.String(scheme),
		fold.String(strings.TrimSpace(record.Host)),
		strconv.Itoa(record.Port),
		fold.String(path),
		fold.String(strings.TrimSpace(record.Username)),
		password,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
