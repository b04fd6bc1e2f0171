// Package state shares the latest torrent list and session state between the
// background poller and the UI.
//
// The poller is the single writer; the UI reads snapshots on its own tick.
// Store guards the data with a readers-writer lock and copies slices on the
// way in and out, so a snapshot never aliases the stored one.
//
// Update semantics:
//
//	store.Update(torrents, &session, nil)
//	→ data replaced, LastError cleared, ConsecutiveFailures reset
//
//	store.Update(nil, nil, err)
//	→ data kept, LastError = err, ConsecutiveFailures++
//
// Seed installs data loaded from the offline cache and marks the snapshot
// FromCache until the first successful Update. After two consecutive failures
// IsOffline reports true and the UI shows the cached age instead of live
// rates.
//
// The zero Store is ready to use.
package state
