// Package config loads remora's TOML configuration.
//
// The file lives at ~/.config/remora/config.toml unless a path is given. A
// missing file is not an error: defaults apply and no servers are configured,
// so commands that need a daemon report that instead.
//
// Example:
//
//	default_server = "nas"
//
//	[[servers]]
//	id = "nas"
//	name = "Living room NAS"
//	host = "nas.local"
//	port = 9091
//	https = true
//	allow_untrusted = true
//	username = "alice"
//
//	[rpc]
//	timeout_seconds = 30
//	max_retries = 3
//
//	[cache]
//	ttl_seconds = 604800
//	max_bytes = 8388608
//
//	[log]
//	level = "debug"
//	format = "json"
//
// Paths accept a leading tilde. Servers without an id receive a random one,
// which changes on every load, so give servers stable ids if their offline
// cache should survive restarts.
package config
