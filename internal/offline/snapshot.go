package offline

import (
	"errors"
	"fmt"
	"time"

	"github.com/five82/remora/internal/domain"
)

// TorrentsSection is the cached torrent list.
type TorrentsSection struct {
	Torrents  []domain.Torrent `json:"torrents"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SessionSection is the cached session state.
type SessionSection struct {
	Session   domain.SessionState `json:"session"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Snapshot holds independently timestamped sections. Either may be nil.
type Snapshot struct {
	Torrents *TorrentsSection `json:"torrents,omitempty"`
	Session  *SessionSection  `json:"session,omitempty"`
}

// IsEmpty reports whether no section is present.
func (s Snapshot) IsEmpty() bool {
	return s.Torrents == nil && s.Session == nil
}

// LatestUpdatedAt returns the newer of the two section timestamps.
func (s Snapshot) LatestUpdatedAt() time.Time {
	var latest time.Time
	if s.Torrents != nil && s.Torrents.UpdatedAt.After(latest) {
		latest = s.Torrents.UpdatedAt
	}
	if s.Session != nil && s.Session.UpdatedAt.After(latest) {
		latest = s.Session.UpdatedAt
	}
	return latest
}

// Envelope is the persisted form of one cache entry.
type Envelope struct {
	Key      Key      `json:"key"`
	Snapshot Snapshot `json:"snapshot"`
}

// ErrExceedsSizeLimit marks a write larger than the configured budget.
var ErrExceedsSizeLimit = errors.New("cache entry exceeds size limit")

// SizeLimitError reports the encoded size of a rejected write.
type SizeLimitError struct {
	Bytes int
	Limit int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: %d bytes > %d", ErrExceedsSizeLimit, e.Bytes, e.Limit)
}

func (e *SizeLimitError) Is(target error) bool {
	return target == ErrExceedsSizeLimit
}
