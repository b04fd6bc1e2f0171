// Package ui is the terminal interface for remora, built on Bubble Tea.
//
// The Model renders a session header, a sortable torrent table and a footer
// with key hints. It never talks to the daemon directly: torrent data arrives
// through state.Store snapshots filled by the poller, and key presses run the
// Actions the caller supplies.
//
// TrustPrompter bridges the certificate trust evaluator and the UI. The
// evaluator's Decide call blocks on a channel until the user answers the modal
// (y trusts and pins the certificate, n or esc denies). Cancelling the
// evaluator's context abandons the wait and counts as a denial.
package ui
