package repository

import (
	"context"
	"fmt"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/mapper"
	"github.com/five82/remora/internal/offline"
	"github.com/five82/remora/internal/transmission"
)

// TorrentRepository reads and mutates torrents on one daemon.
type TorrentRepository struct {
	base
}

func NewTorrentRepository(opts Options) *TorrentRepository {
	return &TorrentRepository{base: newBase(opts, "torrents")}
}

// FetchList loads every torrent and writes the list through to the cache.
func (r *TorrentRepository) FetchList(ctx context.Context) ([]domain.Torrent, error) {
	resp, err := r.rpc.Send(ctx, transmission.MethodTorrentGet, jsonvalue.Object(map[string]jsonvalue.Value{
		"fields": jsonvalue.Strings(mapper.TorrentListFields),
	}))
	if err != nil {
		return nil, err
	}
	torrents, err := mapper.MapTorrentList(resp)
	if err != nil {
		return nil, err
	}
	err = r.writeThrough(ctx, func(cache *offline.Cache) error {
		_, err := cache.UpdateTorrents(ctx, r.key, torrents)
		return err
	})
	if err != nil {
		return nil, err
	}
	return torrents, nil
}

// FetchDetails loads one torrent with files, trackers and a speed sample. A
// cached list holding the torrent is refreshed with the result.
func (r *TorrentRepository) FetchDetails(ctx context.Context, id int) (domain.Torrent, error) {
	resp, err := r.rpc.Send(ctx, transmission.MethodTorrentGet, jsonvalue.Object(map[string]jsonvalue.Value{
		"ids":    jsonvalue.Ints([]int{id}),
		"fields": jsonvalue.Strings(mapper.TorrentDetailFields),
	}))
	if err != nil {
		return domain.Torrent{}, err
	}
	torrent, err := mapper.MapTorrentDetails(resp, r.clock.Now())
	if err != nil {
		return domain.Torrent{}, err
	}
	err = r.writeThrough(ctx, func(cache *offline.Cache) error {
		snapshot, err := cache.Load(ctx, r.key)
		if err != nil || snapshot == nil || snapshot.Torrents == nil {
			return err
		}
		list := append([]domain.Torrent(nil), snapshot.Torrents.Torrents...)
		for i := range list {
			if list[i].ID == torrent.ID {
				list[i] = torrent
				_, err = cache.UpdateTorrents(ctx, r.key, list)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Torrent{}, err
	}
	return torrent, nil
}

// CachedList returns the offline torrent list, or nil when none is fresh.
func (r *TorrentRepository) CachedList(ctx context.Context) (*offline.TorrentsSection, error) {
	snapshot, err := r.cached(ctx)
	if err != nil || snapshot == nil {
		return nil, err
	}
	return snapshot.Torrents, nil
}

func (r *TorrentRepository) Start(ctx context.Context, ids []int) error {
	return r.action(ctx, transmission.MethodTorrentStart, ids)
}

func (r *TorrentRepository) Stop(ctx context.Context, ids []int) error {
	return r.action(ctx, transmission.MethodTorrentStop, ids)
}

func (r *TorrentRepository) Verify(ctx context.Context, ids []int) error {
	return r.action(ctx, transmission.MethodTorrentVerify, ids)
}

func (r *TorrentRepository) action(ctx context.Context, method string, ids []int) error {
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		r.skip(method)
		return nil
	}
	_, err := r.call(ctx, method, jsonvalue.Object(map[string]jsonvalue.Value{
		"ids": jsonvalue.Ints(ids),
	}))
	return err
}

// Remove drops ids from the daemon, deleting their data when deleteData is set.
func (r *TorrentRepository) Remove(ctx context.Context, ids []int, deleteData bool) error {
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		r.skip(transmission.MethodTorrentRemove)
		return nil
	}
	_, err := r.call(ctx, transmission.MethodTorrentRemove, jsonvalue.Object(map[string]jsonvalue.Value{
		"ids":               jsonvalue.Ints(ids),
		"delete-local-data": jsonvalue.Bool(deleteData),
	}))
	return err
}

// Add submits a magnet link, URL or .torrent file.
func (r *TorrentRepository) Add(ctx context.Context, req domain.AddRequest) (domain.AddResult, error) {
	args, err := MakeAddArguments(req)
	if err != nil {
		return domain.AddResult{}, err
	}
	resp, err := r.rpc.Send(ctx, transmission.MethodTorrentAdd, args)
	if err != nil {
		return domain.AddResult{}, err
	}
	result, err := mapper.MapAddResult(resp)
	if err != nil {
		return domain.AddResult{}, err
	}
	r.logger.Info("torrent submitted",
		"torrent_id", result.ID,
		"status", string(result.Status))
	return result, nil
}

func (r *TorrentRepository) UpdateTransferSettings(ctx context.Context, ids []int, settings domain.TransferSettings) error {
	args, ok := MakeTransferSettingsArguments(ids, settings)
	return r.set(ctx, args, ok)
}

// UpdateLabels replaces the labels of ids. An empty label list sends nothing.
func (r *TorrentRepository) UpdateLabels(ctx context.Context, ids []int, labels []string) error {
	args, ok := MakeLabelArguments(ids, labels)
	return r.set(ctx, args, ok)
}

func (r *TorrentRepository) UpdateFileSelection(ctx context.Context, id int, updates []domain.FileSelectionUpdate) error {
	args, ok := MakeFileSelectionArguments(id, updates)
	return r.set(ctx, args, ok)
}

func (r *TorrentRepository) set(ctx context.Context, args jsonvalue.Value, ok bool) error {
	if !ok {
		r.skip(transmission.MethodTorrentSet)
		return nil
	}
	if _, err := r.call(ctx, transmission.MethodTorrentSet, args); err != nil {
		return fmt.Errorf("update torrents: %w", err)
	}
	return nil
}
