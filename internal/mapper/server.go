package mapper

import (
	"fmt"
	"strings"

	"github.com/five82/remora/internal/domain"
)

// MapServerConfig validates a stored server record and attaches its
// authentication. creds may be nil when the password has not been loaded.
func MapServerConfig(record domain.ServerRecord, creds *domain.Credentials) (domain.ServerConfig, error) {
	if strings.TrimSpace(record.ID) == "" {
		return domain.ServerConfig{}, missingField("id")
	}
	host := strings.TrimSpace(record.Host)
	if host == "" {
		return domain.ServerConfig{}, missingField("host")
	}
	if strings.ContainsAny(host, "/ ") {
		return domain.ServerConfig{}, invalidValue("host", fmt.Sprintf("%q is not a hostname", host))
	}
	if record.Port < 1 || record.Port > 65535 {
		return domain.ServerConfig{}, &Error{Kind: ErrInvalidValue, Field: "port", RawValue: fmt.Sprint(record.Port)}
	}
	path := strings.TrimSpace(record.Path)
	if path == "" {
		path = domain.DefaultRPCPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	auth, err := MakeAuthentication(record, creds)
	if err != nil {
		return domain.ServerConfig{}, err
	}

	scheme := domain.SchemeHTTP
	if record.IsSecure {
		scheme = domain.SchemeHTTPS
	}
	name := strings.TrimSpace(record.Name)
	if name == "" {
		name = host
	}
	return domain.ServerConfig{
		ID:         record.ID,
		Name:       name,
		Connection: domain.Connection{Host: host, Port: record.Port, Path: path},
		Security: domain.Security{
			Scheme:                     scheme,
			AllowUntrustedCertificates: record.IsSecure && record.AllowUntrusted,
		},
		Authentication: auth,
	}, nil
}

// MakeAuthentication returns the record's authentication, or nil when it has
// no username. Credentials whose key differs from the record's are rejected.
func MakeAuthentication(record domain.ServerRecord, creds *domain.Credentials) (*domain.Authentication, error) {
	key, ok := record.CredentialsKey()
	if !ok {
		if creds != nil {
			return nil, invalidValue("credentials", "server has no username but credentials were supplied")
		}
		return nil, nil
	}
	if creds != nil && !sameKey(creds.Key, key) {
		return nil, invalidValue("credentials", fmt.Sprintf("credentials for %s do not belong to %s", creds.Key, key))
	}
	return &domain.Authentication{Username: key.Username, CredentialKey: key}, nil
}

func sameKey(a, b domain.CredentialsKey) bool {
	return strings.EqualFold(strings.TrimSpace(a.Host), strings.TrimSpace(b.Host)) &&
		a.Port == b.Port &&
		a.IsSecure == b.IsSecure &&
		strings.TrimSpace(a.Username) == strings.TrimSpace(b.Username)
}
