package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/remora/internal/domain"
)

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Torrents            []domain.Torrent
	Session             domain.SessionState
	HasSession          bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
	// FromCache is set while the data comes from the offline cache rather
	// than the daemon. CachedAt is when the cache captured it.
	FromCache bool
	CachedAt  time.Time
}

// IsOffline returns true when the daemon has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Torrent finds a torrent by id.
func (s Snapshot) Torrent(id int) (domain.Torrent, bool) {
	for _, t := range s.Torrents {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Torrent{}, false
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored snapshot. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(torrents []domain.Torrent, session *domain.SessionState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Torrents = cloneTorrents(torrents)
	if session != nil {
		s.snapshot.Session = *session
		s.snapshot.HasSession = true
	} else {
		s.snapshot.HasSession = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
	s.snapshot.FromCache = false
	s.snapshot.CachedAt = time.Time{}
}

// Seed fills the store from the offline cache. It is ignored once live data
// has arrived.
func (s *Store) Seed(torrents []domain.Torrent, session *domain.SessionState, cachedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snapshot.LastUpdated.IsZero() && s.snapshot.ConsecutiveFailures == 0 && !s.snapshot.FromCache {
		return false
	}
	s.snapshot.Torrents = cloneTorrents(torrents)
	if session != nil {
		s.snapshot.Session = *session
		s.snapshot.HasSession = true
	}
	s.snapshot.FromCache = true
	s.snapshot.CachedAt = cachedAt
	return true
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Torrents = cloneTorrents(s.snapshot.Torrents)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneTorrents(items []domain.Torrent) []domain.Torrent {
	if len(items) == 0 {
		return nil
	}
	dup := make([]domain.Torrent, len(items))
	copy(dup, items)
	for i := range dup {
		if items[i].Summary.Labels != nil {
			dup[i].Summary.Labels = append([]string(nil), items[i].Summary.Labels...)
		}
	}
	return dup
}
