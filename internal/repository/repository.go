// Package repository composes the RPC transport, the domain mapper and the
// offline cache into the operations the rest of remora uses.
//
// Reads map the daemon's response, write the result through to the offline
// cache and return it. A cache write that would exceed the size budget clears
// the entry instead of failing the read. Mutations send the smallest argument
// object that expresses the change and skip the RPC when there is nothing to
// send.
package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/five82/remora/internal/clock"
	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/mapper"
	"github.com/five82/remora/internal/offline"
	"github.com/five82/remora/internal/transmission"
)

// RPC sends one request to the daemon. *transmission.Client satisfies it.
type RPC interface {
	Send(ctx context.Context, method string, args jsonvalue.Value) (transmission.Response, error)
}

// Handshaker negotiates the protocol version. *transmission.Client satisfies it.
type Handshaker interface {
	PerformHandshake(ctx context.Context) (transmission.Handshake, error)
}

// Options wire a repository to its collaborators.
type Options struct {
	RPC RPC
	// Cache is optional. Without it reads are not written through.
	Cache *offline.Cache
	// Key addresses this server's cache entry.
	Key    offline.Key
	Clock  clock.Clock
	Logger *slog.Logger
}

type base struct {
	rpc    RPC
	cache  *offline.Cache
	key    offline.Key
	clock  clock.Clock
	logger *slog.Logger
}

func newBase(opts Options, component string) base {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	return base{
		rpc:    opts.RPC,
		cache:  opts.Cache,
		key:    opts.Key,
		clock:  clk,
		logger: logging.NewComponentLogger(opts.Logger, component),
	}
}

// call sends method and rejects non-success results.
func (b base) call(ctx context.Context, method string, args jsonvalue.Value) (transmission.Response, error) {
	resp, err := b.rpc.Send(ctx, method, args)
	if err != nil {
		return transmission.Response{}, err
	}
	if err := mapper.RequireSuccess(resp, method); err != nil {
		return transmission.Response{}, err
	}
	return resp, nil
}

// writeThrough runs write against the cache. An oversized entry is cleared
// and the read carries on uncached; other cache errors propagate.
func (b base) writeThrough(ctx context.Context, write func(*offline.Cache) error) error {
	if b.cache == nil {
		return nil
	}
	err := write(b.cache)
	if err == nil {
		return nil
	}
	if errors.Is(err, offline.ErrExceedsSizeLimit) {
		logging.WarnWithContext(b.logger, "offline cache entry too large",
			"offline_cache_size_limit",
			"raise cache.max_bytes to keep an offline copy",
			"offline view unavailable for this server",
			slog.String(logging.FieldServer, b.key.ServerID),
			logging.Error(err))
		return b.cache.Clear(ctx, b.key)
	}
	return err
}

func (b base) cached(ctx context.Context) (*offline.Snapshot, error) {
	if b.cache == nil {
		return nil, nil
	}
	return b.cache.Load(ctx, b.key)
}

func (b base) skip(method string) {
	b.logger.Debug("no changes requested, skipping rpc", slog.String("method", method))
}
