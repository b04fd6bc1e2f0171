// Package app wires configuration, credentials, transport, trust, offline
// cache and repositories into a running remora session.
//
// Connect builds a Connection for one configured server without touching the
// network. The first fetch performs the protocol handshake, after which cache
// entries are tagged with the daemon's RPC version.
//
// Run drives the terminal UI. It loads config and preferences, opens a quiet
// file logger (the UI owns the terminal), unlocks the credentials vault when
// the server has a username, and connects. The first refresh runs beside the
// UI so a certificate prompt can be answered in it; if that refresh fails the
// state store is seeded from the offline cache and the header shows a CACHED
// badge until the daemon answers.
//
// StartPoller refreshes the store in the background. After each consecutive
// failure the wait doubles, capped at 30 seconds, and it snaps back to the
// configured interval after the next success. Two or more consecutive
// failures mark the snapshot offline.
package app
