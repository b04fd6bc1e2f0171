package mapper

import (
	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/transmission"
)

// SessionFields is the session-get field set used by MapSessionState.
var SessionFields = []string{
	"rpc-version", "rpc-version-minimum", "version", "download-dir",
	"speed-limit-down", "speed-limit-down-enabled", "speed-limit-up", "speed-limit-up-enabled",
	"alt-speed-enabled", "alt-speed-down", "alt-speed-up",
	"download-queue-enabled", "download-queue-size", "seed-queue-enabled", "seed-queue-size",
	"queue-stalled-enabled", "queue-stalled-minutes",
	"seedRatioLimit", "seedRatioLimited", "download-dir-free-space",
}

// MapSessionState combines session-get and session-stats responses.
func MapSessionState(session, stats transmission.Response) (domain.SessionState, error) {
	s, err := arguments(session, transmission.MethodSessionGet)
	if err != nil {
		return domain.SessionState{}, err
	}
	st, err := arguments(stats, transmission.MethodSessionStats)
	if err != nil {
		return domain.SessionState{}, err
	}

	s.need("rpc-version", "download-dir")
	state := domain.SessionState{
		RPC: domain.RPCVersionInfo{
			Version:        s.integer("rpc-version"),
			MinimumVersion: s.integer("rpc-version-minimum"),
			ServerVersion:  s.text("version"),
		},
		DownloadDir: s.text("download-dir"),
		SpeedLimits: domain.SpeedLimits{
			Download:            domain.TransferLimit{Enabled: s.flag("speed-limit-down-enabled"), KBps: s.integer("speed-limit-down")},
			Upload:              domain.TransferLimit{Enabled: s.flag("speed-limit-up-enabled"), KBps: s.integer("speed-limit-up")},
			AlternativeEnabled:  s.flag("alt-speed-enabled"),
			AlternativeDownKBps: s.integer("alt-speed-down"),
			AlternativeUpKBps:   s.integer("alt-speed-up"),
		},
		Queue: domain.QueueSettings{
			DownloadEnabled: s.flag("download-queue-enabled"),
			DownloadSize:    s.integer("download-queue-size"),
			SeedEnabled:     s.flag("seed-queue-enabled"),
			SeedSize:        s.integer("seed-queue-size"),
			StalledEnabled:  s.flag("queue-stalled-enabled"),
			StalledMinutes:  s.integer("queue-stalled-minutes"),
		},
		SeedRatioLimit: domain.RatioLimit{
			Enabled: s.flag("seedRatioLimited"),
			Ratio:   s.number("seedRatioLimit"),
		},
		Storage: domain.Storage{FreeBytes: -1},
	}
	if s.has("download-dir-free-space") {
		state.Storage.FreeBytes = s.integer64("download-dir-free-space")
	}
	if err := s.result(); err != nil {
		return domain.SessionState{}, err
	}

	st.need("downloadSpeed", "uploadSpeed")
	cumulative := st.child("cumulative-stats")
	current := st.child("current-stats")
	state.Throughput = domain.Throughput{
		DownloadSpeed:      st.integer64("downloadSpeed"),
		UploadSpeed:        st.integer64("uploadSpeed"),
		ActiveTorrentCount: st.integer("activeTorrentCount"),
		PausedTorrentCount: st.integer("pausedTorrentCount"),
		TorrentCount:       st.integer("torrentCount"),
		CumulativeDownload: cumulative.integer64("downloadedBytes"),
		CumulativeUpload:   cumulative.integer64("uploadedBytes"),
		CurrentDownload:    current.integer64("downloadedBytes"),
		CurrentUpload:      current.integer64("uploadedBytes"),
	}
	st.absorb(cumulative)
	st.absorb(current)
	if err := st.result(); err != nil {
		return domain.SessionState{}, err
	}
	return state, nil
}
