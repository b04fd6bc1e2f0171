package transmission

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/five82/remora/internal/jsonvalue"
)

const redacted = "<redacted>"

// RedactAuthorization keeps the scheme and two characters at each end of the
// credential.
func RedactAuthorization(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	scheme, credential, found := strings.Cut(value, " ")
	if !found {
		credential = scheme
		scheme = ""
	}
	credential = strings.TrimSpace(credential)
	masked := redacted
	if len(credential) > 8 {
		masked = credential[:2] + "..." + credential[len(credential)-2:]
	}
	if scheme == "" {
		return masked
	}
	return scheme + " " + masked
}

// RedactHeaders renders headers for logging with secrets masked.
func RedactHeaders(header http.Header) string {
	keys := make([]string, 0, len(header))
	for key := range header {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := strings.Join(header.Values(key), ",")
		switch http.CanonicalHeaderKey(key) {
		case "Authorization", "Proxy-Authorization":
			value = RedactAuthorization(value)
		case http.CanonicalHeaderKey(SessionIDHeader), "Cookie", "Set-Cookie":
			value = redacted
		}
		parts = append(parts, key+"="+value)
	}
	return strings.Join(parts, "; ")
}

// RedactBody renders a JSON body with every string leaf masked. Bodies that
// are not JSON are summarised by size.
func RedactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	value, err := jsonvalue.Parse(body)
	if err != nil {
		return "<non-json body: " + strconv.Itoa(len(body)) + " bytes>"
	}
	return value.Redacted().String()
}
