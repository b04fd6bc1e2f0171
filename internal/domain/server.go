package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Scheme is the transport used to reach a daemon.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// DefaultRPCPath is the daemon's stock RPC endpoint.
const DefaultRPCPath = "/transmission/rpc"

// ServerRecord is the persisted description of a daemon, before credentials
// are attached.
type ServerRecord struct {
	ID             string
	Name           string
	Host           string
	Port           int
	Path           string
	IsSecure       bool
	AllowUntrusted bool
	Username       string
}

// CredentialsKey returns the key under which this record's secret is stored.
// ok is false when the record has no username.
func (r ServerRecord) CredentialsKey() (CredentialsKey, bool) {
	username := strings.TrimSpace(r.Username)
	if username == "" {
		return CredentialsKey{}, false
	}
	return CredentialsKey{Host: r.Host, Port: r.Port, IsSecure: r.IsSecure, Username: username}, true
}

// Connection locates the daemon's RPC endpoint.
type Connection struct {
	Host string
	Port int
	Path string
}

// Security selects the scheme and certificate policy.
type Security struct {
	Scheme                     Scheme
	AllowUntrustedCertificates bool
}

// Authentication links a server to its stored credentials.
type Authentication struct {
	Username      string
	CredentialKey CredentialsKey
}

// ServerConfig is a fully validated server description.
type ServerConfig struct {
	ID             string
	Name           string
	Connection     Connection
	Security       Security
	Authentication *Authentication
}

// IsSecure reports whether the server uses https.
func (c ServerConfig) IsSecure() bool {
	return c.Security.Scheme == SchemeHTTPS
}

// Endpoint renders the RPC URL.
func (c ServerConfig) Endpoint() string {
	path := c.Connection.Path
	if path == "" {
		path = DefaultRPCPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	host := net.JoinHostPort(c.Connection.Host, strconv.Itoa(c.Connection.Port))
	return fmt.Sprintf("%s://%s%s", c.Security.Scheme, host, path)
}

// CredentialsKey joins stored secrets to a server record.
type CredentialsKey struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	IsSecure bool   `json:"is_secure"`
	Username string `json:"username"`
}

// String renders a stable identifier for storage lookups.
func (k CredentialsKey) String() string {
	scheme := SchemeHTTP
	if k.IsSecure {
		scheme = SchemeHTTPS
	}
	return fmt.Sprintf("%s://%s@%s", scheme, k.Username, net.JoinHostPort(strings.ToLower(k.Host), strconv.Itoa(k.Port)))
}

// Credentials is a username/password pair bound to a key.
type Credentials struct {
	Key      CredentialsKey `json:"key"`
	Password string         `json:"password"`
}
