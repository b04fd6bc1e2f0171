package mapper

import (
	"fmt"
	"strconv"
	"time"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/transmission"
)

// TorrentListFields is the torrent-get field set for the list view.
var TorrentListFields = []string{
	"id", "name", "status", "percentDone", "totalSize",
	"downloadedEver", "uploadedEver", "uploadRatio",
	"rateDownload", "rateUpload", "eta",
	"peersConnected", "peersSendingToUs", "peersGettingFromUs",
	"downloadLimit", "downloadLimited", "uploadLimit", "uploadLimited",
	"seedRatioLimit", "seedRatioMode", "labels", "error", "errorString",
}

// TorrentDetailFields extends TorrentListFields with per-torrent details.
var TorrentDetailFields = append(append([]string(nil), TorrentListFields...),
	"downloadDir", "addedDate", "hashString", "comment",
	"files", "fileStats", "trackers", "trackerStats",
)

// MapTorrentList maps a torrent-get response.
func MapTorrentList(resp transmission.Response) ([]domain.Torrent, error) {
	args, err := arguments(resp, transmission.MethodTorrentGet)
	if err != nil {
		return nil, err
	}
	args.need("torrents")
	items := args.children("torrents")
	if err := args.result(); err != nil {
		return nil, err
	}

	torrents := make([]domain.Torrent, 0, len(items))
	for _, item := range items {
		torrent, err := mapTorrent(item)
		if err != nil {
			return nil, err
		}
		torrents = append(torrents, torrent)
	}
	return torrents, nil
}

// MapTorrentDetails maps a torrent-get response for a single torrent.
// sampledAt stamps the speed sample taken from the current rates.
func MapTorrentDetails(resp transmission.Response, sampledAt time.Time) (domain.Torrent, error) {
	args, err := arguments(resp, transmission.MethodTorrentGet)
	if err != nil {
		return domain.Torrent{}, err
	}
	args.need("torrents")
	items := args.children("torrents")
	if err := args.result(); err != nil {
		return domain.Torrent{}, err
	}
	if len(items) == 0 {
		return domain.Torrent{}, &Error{Kind: ErrEmptyCollection, Field: "torrents", Details: "expected exactly one torrent"}
	}
	if len(items) > 1 {
		return domain.Torrent{}, invalidValue("torrents", fmt.Sprintf("expected exactly one torrent, got %d", len(items)))
	}

	item := items[0]
	torrent, err := mapTorrent(item)
	if err != nil {
		return domain.Torrent{}, err
	}
	details, err := mapDetails(item, torrent.Summary, sampledAt)
	if err != nil {
		return domain.Torrent{}, err
	}
	torrent.Details = &details
	return torrent, nil
}

func mapTorrent(r *reader) (domain.Torrent, error) {
	r.need("id", "name", "status")
	id := r.integer("id")
	name := r.text("name")
	rawStatus := r.integer("status")
	if err := r.result(); err != nil {
		return domain.Torrent{}, err
	}
	status, err := domain.ParseTorrentStatus(rawStatus)
	if err != nil {
		return domain.Torrent{}, &Error{
			Kind:     ErrUnsupportedStatus,
			Field:    r.fieldPath("status"),
			RawValue: strconv.Itoa(rawStatus),
		}
	}

	summary := domain.TorrentSummary{
		Progress:       r.number("percentDone"),
		TotalSize:      r.integer64("totalSize"),
		DownloadedEver: r.integer64("downloadedEver"),
		UploadedEver:   r.integer64("uploadedEver"),
		UploadRatio:    r.number("uploadRatio"),
		RateDownload:   r.integer64("rateDownload"),
		RateUpload:     r.integer64("rateUpload"),
		ETA:            r.integer64("eta"),
		Peers: domain.Peers{
			Connected:     r.integer("peersConnected"),
			SendingToUs:   r.integer("peersSendingToUs"),
			GettingFromUs: r.integer("peersGettingFromUs"),
		},
		DownloadLimit: domain.TransferLimit{Enabled: r.flag("downloadLimited"), KBps: r.integer("downloadLimit")},
		UploadLimit:   domain.TransferLimit{Enabled: r.flag("uploadLimited"), KBps: r.integer("uploadLimit")},
		SeedRatioLimit: domain.SeedRatioLimit{
			Mode:  domain.SeedRatioMode(r.integer("seedRatioMode")),
			Ratio: r.number("seedRatioLimit"),
		},
		Labels:      r.texts("labels"),
		ErrorCode:   r.integer("error"),
		ErrorString: r.text("errorString"),
	}
	if err := r.result(); err != nil {
		return domain.Torrent{}, err
	}
	if summary.Progress < 0 || summary.Progress > 1 {
		return domain.Torrent{}, invalidValue(r.fieldPath("percentDone"), fmt.Sprintf("progress %v outside [0,1]", summary.Progress))
	}
	switch summary.SeedRatioLimit.Mode {
	case domain.SeedRatioGlobal, domain.SeedRatioSingle, domain.SeedRatioUnlimited:
	default:
		return domain.Torrent{}, invalidValue(r.fieldPath("seedRatioMode"), fmt.Sprintf("unknown mode %d", summary.SeedRatioLimit.Mode))
	}

	return domain.Torrent{ID: id, Name: name, Status: status, Summary: summary}, nil
}

func mapDetails(r *reader, summary domain.TorrentSummary, sampledAt time.Time) (domain.TorrentDetails, error) {
	r.need("files", "fileStats")
	details := domain.TorrentDetails{
		DownloadDir: r.text("downloadDir"),
		HashString:  r.text("hashString"),
		Comment:     r.text("comment"),
	}
	if added := r.integer64("addedDate"); added > 0 {
		details.AddedDate = time.Unix(added, 0).UTC()
	}
	files := r.children("files")
	stats := r.children("fileStats")
	trackers := r.children("trackers")
	trackerStats := r.children("trackerStats")
	if err := r.result(); err != nil {
		return domain.TorrentDetails{}, err
	}
	if len(files) != len(stats) {
		return domain.TorrentDetails{}, invalidValue(r.fieldPath("fileStats"),
			fmt.Sprintf("%d stats for %d files", len(stats), len(files)))
	}

	details.Files = make([]domain.TorrentFile, 0, len(files))
	for i, file := range files {
		stat := stats[i]
		file.need("name", "length")
		stat.need("wanted", "priority")
		entry := domain.TorrentFile{
			Index:          i,
			Name:           file.text("name"),
			Length:         file.integer64("length"),
			BytesCompleted: file.integer64("bytesCompleted"),
			Wanted:         stat.flag("wanted"),
		}
		rawPriority := stat.integer("priority")
		file.absorb(stat)
		if err := file.result(); err != nil {
			return domain.TorrentDetails{}, err
		}
		priority, err := domain.ParseFilePriority(rawPriority)
		if err != nil {
			return domain.TorrentDetails{}, &Error{
				Kind:     ErrInvalidValue,
				Field:    stat.fieldPath("priority"),
				RawValue: strconv.Itoa(rawPriority),
			}
		}
		entry.Priority = priority
		details.Files = append(details.Files, entry)
	}

	details.Trackers = make([]domain.Tracker, 0, len(trackers))
	for _, tracker := range trackers {
		tracker.need("announce")
		entry := domain.Tracker{
			ID:       tracker.integer("id"),
			Announce: tracker.text("announce"),
			Tier:     tracker.integer("tier"),
		}
		if err := tracker.result(); err != nil {
			return domain.TorrentDetails{}, err
		}
		details.Trackers = append(details.Trackers, entry)
	}

	details.TrackerStats = make([]domain.TrackerStat, 0, len(trackerStats))
	for _, stat := range trackerStats {
		entry := domain.TrackerStat{
			ID:                    stat.integer("id"),
			Host:                  stat.text("host"),
			LastAnnounceResult:    stat.text("lastAnnounceResult"),
			LastAnnounceSucceeded: stat.flag("lastAnnounceSucceeded"),
			SeederCount:           stat.integer("seederCount"),
			LeecherCount:          stat.integer("leecherCount"),
		}
		if err := stat.result(); err != nil {
			return domain.TorrentDetails{}, err
		}
		details.TrackerStats = append(details.TrackerStats, entry)
	}

	details.SpeedSamples = []domain.SpeedSample{{
		At:           sampledAt.UTC(),
		DownloadRate: summary.RateDownload,
		UploadRate:   summary.RateUpload,
	}}
	return details, nil
}

// MapAddResult distinguishes torrent-added from torrent-duplicate.
func MapAddResult(resp transmission.Response) (domain.AddResult, error) {
	args, err := arguments(resp, transmission.MethodTorrentAdd)
	if err != nil {
		return domain.AddResult{}, err
	}

	var status domain.AddStatus
	var entry *reader
	switch {
	case args.has("torrent-duplicate"):
		status = domain.AddStatusDuplicate
		entry = args.child("torrent-duplicate")
	case args.has("torrent-added"):
		status = domain.AddStatusAdded
		entry = args.child("torrent-added")
	default:
		return domain.AddResult{}, missingField(transmission.MethodTorrentAdd + ".torrent-added")
	}
	if err := args.result(); err != nil {
		return domain.AddResult{}, err
	}

	entry.need("id")
	result := domain.AddResult{
		Status:     status,
		ID:         entry.integer("id"),
		Name:       entry.text("name"),
		HashString: entry.text("hashString"),
	}
	if err := entry.result(); err != nil {
		return domain.AddResult{}, err
	}
	return result, nil
}

// MapFreeSpaceBytes reads size-bytes from a free-space response. Doubles are
// truncated.
func MapFreeSpaceBytes(resp transmission.Response) (int64, error) {
	args, err := arguments(resp, transmission.MethodFreeSpace)
	if err != nil {
		return 0, err
	}
	args.need("size-bytes")
	bytes := args.integer64("size-bytes")
	if err := args.result(); err != nil {
		return 0, err
	}
	return bytes, nil
}
