package domain

// SessionState is the daemon-wide state shown alongside the torrent list.
type SessionState struct {
	RPC            RPCVersionInfo `json:"rpc"`
	DownloadDir    string         `json:"download_dir"`
	SpeedLimits    SpeedLimits    `json:"speed_limits"`
	Queue          QueueSettings  `json:"queue"`
	SeedRatioLimit RatioLimit     `json:"seed_ratio_limit"`
	Throughput     Throughput     `json:"throughput"`
	Storage        Storage        `json:"storage"`
}

// RPCVersionInfo describes the daemon's protocol level.
type RPCVersionInfo struct {
	Version        int    `json:"version"`
	MinimumVersion int    `json:"minimum_version"`
	ServerVersion  string `json:"server_version"`
}

// SpeedLimits holds the standard and alternative (turtle mode) limits.
type SpeedLimits struct {
	Download            TransferLimit `json:"download"`
	Upload              TransferLimit `json:"upload"`
	AlternativeEnabled  bool          `json:"alternative_enabled"`
	AlternativeDownKBps int           `json:"alternative_down_kbps"`
	AlternativeUpKBps   int           `json:"alternative_up_kbps"`
}

// QueueSettings mirrors the daemon's download/seed queue configuration.
type QueueSettings struct {
	DownloadEnabled bool `json:"download_enabled"`
	DownloadSize    int  `json:"download_size"`
	SeedEnabled     bool `json:"seed_enabled"`
	SeedSize        int  `json:"seed_size"`
	StalledEnabled  bool `json:"stalled_enabled"`
	StalledMinutes  int  `json:"stalled_minutes"`
}

// RatioLimit is the session-wide seed ratio limit.
type RatioLimit struct {
	Enabled bool    `json:"enabled"`
	Ratio   float64 `json:"ratio"`
}

// Throughput aggregates session-stats counters.
type Throughput struct {
	DownloadSpeed      int64 `json:"download_speed"`
	UploadSpeed        int64 `json:"upload_speed"`
	ActiveTorrentCount int   `json:"active_torrent_count"`
	PausedTorrentCount int   `json:"paused_torrent_count"`
	TorrentCount       int   `json:"torrent_count"`
	CumulativeDownload int64 `json:"cumulative_download"`
	CumulativeUpload   int64 `json:"cumulative_upload"`
	CurrentDownload    int64 `json:"current_download"`
	CurrentUpload      int64 `json:"current_upload"`
}

// Storage reports free space in the default download directory. FreeBytes is
// negative when the daemon did not report it.
type Storage struct {
	FreeBytes int64 `json:"free_bytes"`
}

// SessionSettings is a partial update for session-set. Nil fields are left
// untouched.
type SessionSettings struct {
	DownloadDir          *string
	DownloadLimit        *TransferLimit
	UploadLimit          *TransferLimit
	AlternativeEnabled   *bool
	SeedRatioLimit       *RatioLimit
	DownloadQueueSize    *int
	DownloadQueueEnabled *bool
}
