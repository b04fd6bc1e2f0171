// Package transmission is the JSON-RPC client for the Transmission daemon.
//
// Every call goes through Client.Send, which owns the session-token
// handshake (HTTP 409), transient-failure retries, status mapping and
// redacted request logging. The typed helpers in methods.go wrap Send for
// each RPC method and reject responses whose result is not "success".
package transmission

import "github.com/five82/remora/internal/jsonvalue"

const (
	// SessionIDHeader carries the daemon's CSRF session token.
	SessionIDHeader = "X-Transmission-Session-Id"
	// ResultSuccess is the result string of a successful RPC.
	ResultSuccess = "success"
	// MinimumRPCVersion is the oldest protocol level remora speaks.
	MinimumRPCVersion = 14
)

// RPC method names.
const (
	MethodSessionGet    = "session-get"
	MethodSessionSet    = "session-set"
	MethodSessionStats  = "session-stats"
	MethodTorrentGet    = "torrent-get"
	MethodTorrentAdd    = "torrent-add"
	MethodTorrentStart  = "torrent-start"
	MethodTorrentStop   = "torrent-stop"
	MethodTorrentRemove = "torrent-remove"
	MethodTorrentSet    = "torrent-set"
	MethodTorrentVerify = "torrent-verify"
	MethodFreeSpace     = "free-space"
)

// Request is the body POSTed to the RPC endpoint.
type Request struct {
	Method    string           `json:"method"`
	Arguments *jsonvalue.Value `json:"arguments,omitempty"`
	Tag       *int64           `json:"tag,omitempty"`
}

// Response is the decoded body of a 2xx RPC reply.
type Response struct {
	Result    string           `json:"result"`
	Arguments *jsonvalue.Value `json:"arguments,omitempty"`
	Tag       *int64           `json:"tag,omitempty"`
}

// IsSuccess reports whether the daemon accepted the call.
func (r Response) IsSuccess() bool {
	return r.Result == ResultSuccess
}

// Args returns the response arguments, or a null value when absent.
func (r Response) Args() jsonvalue.Value {
	if r.Arguments == nil {
		return jsonvalue.Null()
	}
	return *r.Arguments
}
