package repository

import (
	"encoding/base64"
	"errors"
	"sort"
	"strings"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/jsonvalue"
)

// ErrInvalidAddRequest is returned when an AddRequest names no source or
// both a source and metainfo.
var ErrInvalidAddRequest = errors.New("add request needs exactly one of source or metainfo")

// uniqueSorted returns ids sorted with duplicates removed.
func uniqueSorted(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int(nil), ids...)
	sort.Ints(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// MakeFileSelectionArguments builds torrent-set arguments for per-file
// wanted flags and priorities. Updates for the same file index resolve to the
// last one given. ok is false when there is nothing to send.
func MakeFileSelectionArguments(torrentID int, updates []domain.FileSelectionUpdate) (args jsonvalue.Value, ok bool) {
	if len(updates) == 0 {
		return jsonvalue.Null(), false
	}
	latest := make(map[int]domain.FileSelectionUpdate, len(updates))
	for _, update := range updates {
		if update.FileIndex < 0 {
			continue
		}
		latest[update.FileIndex] = update
	}
	if len(latest) == 0 {
		return jsonvalue.Null(), false
	}

	var wanted, unwanted, high, normal, low []int
	for index, update := range latest {
		if update.Wanted {
			wanted = append(wanted, index)
		} else {
			unwanted = append(unwanted, index)
		}
		switch update.Priority {
		case domain.PriorityHigh:
			high = append(high, index)
		case domain.PriorityLow:
			low = append(low, index)
		default:
			normal = append(normal, index)
		}
	}

	fields := map[string]jsonvalue.Value{"ids": jsonvalue.Ints([]int{torrentID})}
	for key, bucket := range map[string][]int{
		"files-wanted":    wanted,
		"files-unwanted":  unwanted,
		"priority-high":   high,
		"priority-normal": normal,
		"priority-low":    low,
	} {
		if len(bucket) > 0 {
			fields[key] = jsonvalue.Ints(uniqueSorted(bucket))
		}
	}
	return jsonvalue.Object(fields), true
}

// MakeTransferSettingsArguments builds torrent-set arguments for speed limits
// and the seed ratio policy. ok is false when settings change nothing.
func MakeTransferSettingsArguments(ids []int, settings domain.TransferSettings) (args jsonvalue.Value, ok bool) {
	fields := map[string]jsonvalue.Value{}
	if limit := settings.DownloadLimit; limit != nil {
		fields["downloadLimited"] = jsonvalue.Bool(limit.Enabled)
		fields["downloadLimit"] = jsonvalue.Int(int64(limit.KBps))
	}
	if limit := settings.UploadLimit; limit != nil {
		fields["uploadLimited"] = jsonvalue.Bool(limit.Enabled)
		fields["uploadLimit"] = jsonvalue.Int(int64(limit.KBps))
	}
	if ratio := settings.SeedRatioLimit; ratio != nil {
		fields["seedRatioMode"] = jsonvalue.Int(int64(ratio.Mode))
		if ratio.Mode == domain.SeedRatioSingle {
			fields["seedRatioLimit"] = jsonvalue.Double(ratio.Ratio)
		}
	}
	if len(fields) == 0 || len(ids) == 0 {
		return jsonvalue.Null(), false
	}
	fields["ids"] = jsonvalue.Ints(uniqueSorted(ids))
	return jsonvalue.Object(fields), true
}

// normalizeLabels trims labels and drops blanks and repeats, keeping order.
// The daemon rejects labels containing commas.
func normalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" || strings.Contains(label, ",") {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// MakeLabelArguments builds torrent-set arguments replacing the labels of
// ids. ok is false when no usable label remains.
func MakeLabelArguments(ids []int, labels []string) (args jsonvalue.Value, ok bool) {
	labels = normalizeLabels(labels)
	if len(labels) == 0 || len(ids) == 0 {
		return jsonvalue.Null(), false
	}
	return jsonvalue.Object(map[string]jsonvalue.Value{
		"ids":    jsonvalue.Ints(uniqueSorted(ids)),
		"labels": jsonvalue.Strings(labels),
	}), true
}

// MakeSessionSettingsArguments builds session-set arguments. ok is false when
// settings change nothing.
func MakeSessionSettingsArguments(settings domain.SessionSettings) (args jsonvalue.Value, ok bool) {
	fields := map[string]jsonvalue.Value{}
	if dir := settings.DownloadDir; dir != nil && strings.TrimSpace(*dir) != "" {
		fields["download-dir"] = jsonvalue.String(strings.TrimSpace(*dir))
	}
	if limit := settings.DownloadLimit; limit != nil {
		fields["speed-limit-down-enabled"] = jsonvalue.Bool(limit.Enabled)
		fields["speed-limit-down"] = jsonvalue.Int(int64(limit.KBps))
	}
	if limit := settings.UploadLimit; limit != nil {
		fields["speed-limit-up-enabled"] = jsonvalue.Bool(limit.Enabled)
		fields["speed-limit-up"] = jsonvalue.Int(int64(limit.KBps))
	}
	if enabled := settings.AlternativeEnabled; enabled != nil {
		fields["alt-speed-enabled"] = jsonvalue.Bool(*enabled)
	}
	if ratio := settings.SeedRatioLimit; ratio != nil {
		fields["seedRatioLimited"] = jsonvalue.Bool(ratio.Enabled)
		fields["seedRatioLimit"] = jsonvalue.Double(ratio.Ratio)
	}
	if size := settings.DownloadQueueSize; size != nil {
		fields["download-queue-size"] = jsonvalue.Int(int64(*size))
	}
	if enabled := settings.DownloadQueueEnabled; enabled != nil {
		fields["download-queue-enabled"] = jsonvalue.Bool(*enabled)
	}
	if len(fields) == 0 {
		return jsonvalue.Null(), false
	}
	return jsonvalue.Object(fields), true
}

// MakeAddArguments builds torrent-add arguments.
func MakeAddArguments(req domain.AddRequest) (jsonvalue.Value, error) {
	source := strings.TrimSpace(req.Source)
	if (source == "") == (len(req.MetaInfo) == 0) {
		return jsonvalue.Null(), ErrInvalidAddRequest
	}
	fields := map[string]jsonvalue.Value{
		"paused": jsonvalue.Bool(req.Paused),
	}
	if source != "" {
		fields["filename"] = jsonvalue.String(source)
	} else {
		fields["metainfo"] = jsonvalue.String(base64.StdEncoding.EncodeToString(req.MetaInfo))
	}
	if dir := strings.TrimSpace(req.DownloadDir); dir != "" {
		fields["download-dir"] = jsonvalue.String(dir)
	}
	if labels := normalizeLabels(req.Labels); len(labels) > 0 {
		fields["labels"] = jsonvalue.Strings(labels)
	}
	return jsonvalue.Object(fields), nil
}
