// Package domain holds the typed entities remora works with after RPC
// payloads have been validated by the mapper.
package domain

import (
	"fmt"
	"time"
)

// TorrentStatus mirrors the daemon's numeric torrent status.
type TorrentStatus int

const (
	StatusStopped      TorrentStatus = 0
	StatusCheckWait    TorrentStatus = 1
	StatusChecking     TorrentStatus = 2
	StatusDownloadWait TorrentStatus = 3
	StatusDownloading  TorrentStatus = 4
	StatusSeedWait     TorrentStatus = 5
	StatusSeeding      TorrentStatus = 6
)

var statusNames = map[TorrentStatus]string{
	StatusStopped:      "stopped",
	StatusCheckWait:    "check_wait",
	StatusChecking:     "checking",
	StatusDownloadWait: "download_wait",
	StatusDownloading:  "downloading",
	StatusSeedWait:     "seed_wait",
	StatusSeeding:      "seeding",
}

// ParseTorrentStatus validates a raw status code. Unknown codes are an error,
// never a guessed status.
func ParseTorrentStatus(raw int) (TorrentStatus, error) {
	status := TorrentStatus(raw)
	if _, ok := statusNames[status]; !ok {
		return 0, fmt.Errorf("unsupported torrent status %d", raw)
	}
	return status, nil
}

func (s TorrentStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsActive reports whether the torrent is transferring or queued to.
func (s TorrentStatus) IsActive() bool {
	return s != StatusStopped
}

// Torrent is a single torrent as seen by the client.
type Torrent struct {
	ID      int             `json:"id"`
	Name    string          `json:"name"`
	Status  TorrentStatus   `json:"status"`
	Summary TorrentSummary  `json:"summary"`
	Details *TorrentDetails `json:"details,omitempty"`
}

// TransferLimit is a per-direction speed cap in KB/s.
type TransferLimit struct {
	Enabled bool `json:"enabled"`
	KBps    int  `json:"kbps"`
}

// SeedRatioMode mirrors the daemon's tr_ratiolimit values.
type SeedRatioMode int

const (
	SeedRatioGlobal    SeedRatioMode = 0
	SeedRatioSingle    SeedRatioMode = 1
	SeedRatioUnlimited SeedRatioMode = 2
)

// SeedRatioLimit is a per-torrent seeding ratio policy.
type SeedRatioLimit struct {
	Mode  SeedRatioMode `json:"mode"`
	Ratio float64       `json:"ratio"`
}

// Peers summarises swarm connectivity.
type Peers struct {
	Connected     int `json:"connected"`
	SendingToUs   int `json:"sending_to_us"`
	GettingFromUs int `json:"getting_from_us"`
}

// TorrentSummary is the list-view projection of a torrent.
type TorrentSummary struct {
	Progress       float64        `json:"progress"`
	TotalSize      int64          `json:"total_size"`
	DownloadedEver int64          `json:"downloaded_ever"`
	UploadedEver   int64          `json:"uploaded_ever"`
	UploadRatio    float64        `json:"upload_ratio"`
	RateDownload   int64          `json:"rate_download"`
	RateUpload     int64          `json:"rate_upload"`
	ETA            int64          `json:"eta"`
	Peers          Peers          `json:"peers"`
	DownloadLimit  TransferLimit  `json:"download_limit"`
	UploadLimit    TransferLimit  `json:"upload_limit"`
	SeedRatioLimit SeedRatioLimit `json:"seed_ratio_limit"`
	Labels         []string       `json:"labels,omitempty"`
	ErrorCode      int            `json:"error_code"`
	ErrorString    string         `json:"error_string,omitempty"`
}

// FilePriority mirrors the daemon's per-file priority.
type FilePriority int

const (
	PriorityLow    FilePriority = -1
	PriorityNormal FilePriority = 0
	PriorityHigh   FilePriority = 1
)

// ParseFilePriority validates a raw priority value.
func ParseFilePriority(raw int) (FilePriority, error) {
	switch FilePriority(raw) {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return FilePriority(raw), nil
	default:
		return 0, fmt.Errorf("unsupported file priority %d", raw)
	}
}

func (p FilePriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// TorrentFile is one file within a torrent.
type TorrentFile struct {
	Index          int          `json:"index"`
	Name           string       `json:"name"`
	Length         int64        `json:"length"`
	BytesCompleted int64        `json:"bytes_completed"`
	Wanted         bool         `json:"wanted"`
	Priority       FilePriority `json:"priority"`
}

// Tracker is an announce URL configured for a torrent.
type Tracker struct {
	ID       int    `json:"id"`
	Announce string `json:"announce"`
	Tier     int    `json:"tier"`
}

// TrackerStat is the daemon's most recent view of a tracker.
type TrackerStat struct {
	ID                    int    `json:"id"`
	Host                  string `json:"host"`
	LastAnnounceResult    string `json:"last_announce_result"`
	LastAnnounceSucceeded bool   `json:"last_announce_succeeded"`
	SeederCount           int    `json:"seeder_count"`
	LeecherCount          int    `json:"leecher_count"`
}

// SpeedSample records transfer rates at a point in time.
type SpeedSample struct {
	At           time.Time `json:"at"`
	DownloadRate int64     `json:"download_rate"`
	UploadRate   int64     `json:"upload_rate"`
}

// TorrentDetails holds the data only fetched for a single torrent.
type TorrentDetails struct {
	DownloadDir  string        `json:"download_dir"`
	AddedDate    time.Time     `json:"added_date"`
	HashString   string        `json:"hash_string"`
	Comment      string        `json:"comment,omitempty"`
	Files        []TorrentFile `json:"files"`
	Trackers     []Tracker     `json:"trackers"`
	TrackerStats []TrackerStat `json:"tracker_stats"`
	SpeedSamples []SpeedSample `json:"speed_samples"`
}

// AddStatus distinguishes a new torrent from one the daemon already had.
type AddStatus string

const (
	AddStatusAdded     AddStatus = "added"
	AddStatusDuplicate AddStatus = "duplicate"
)

// AddResult is the outcome of torrent-add.
type AddResult struct {
	Status     AddStatus `json:"status"`
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	HashString string    `json:"hash_string"`
}

// AddRequest describes a torrent to add. Exactly one of Source and MetaInfo
// must be set.
type AddRequest struct {
	// Source is a magnet link or URL.
	Source string
	// MetaInfo is the raw .torrent file contents.
	MetaInfo    []byte
	DownloadDir string
	Paused      bool
	Labels      []string
}

// FileSelectionUpdate changes the wanted flag and priority of one file.
type FileSelectionUpdate struct {
	FileIndex int
	Wanted    bool
	Priority  FilePriority
}

// TransferSettings is a partial update of per-torrent transfer settings. Nil
// fields are left untouched.
type TransferSettings struct {
	DownloadLimit  *TransferLimit
	UploadLimit    *TransferLimit
	SeedRatioLimit *SeedRatioLimit
}
