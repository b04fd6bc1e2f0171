package repository

import (
	"context"
	"errors"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/mapper"
	"github.com/five82/remora/internal/offline"
	"github.com/five82/remora/internal/transmission"
)

// ErrHandshakeUnavailable is returned by Handshake when no Handshaker was
// configured.
var ErrHandshakeUnavailable = errors.New("handshake not available")

// SessionRepository reads and updates daemon-wide state.
type SessionRepository struct {
	base
	handshaker Handshaker
}

// NewSessionRepository builds a SessionRepository. handshaker may be nil.
func NewSessionRepository(opts Options, handshaker Handshaker) *SessionRepository {
	return &SessionRepository{base: newBase(opts, "session"), handshaker: handshaker}
}

// Handshake negotiates the protocol version with the daemon.
func (r *SessionRepository) Handshake(ctx context.Context) (transmission.Handshake, error) {
	if r.handshaker == nil {
		return transmission.Handshake{}, ErrHandshakeUnavailable
	}
	return r.handshaker.PerformHandshake(ctx)
}

// FetchState combines session-get and session-stats and writes the result
// through to the cache.
func (r *SessionRepository) FetchState(ctx context.Context) (domain.SessionState, error) {
	session, err := r.rpc.Send(ctx, transmission.MethodSessionGet, jsonvalue.Object(map[string]jsonvalue.Value{
		"fields": jsonvalue.Strings(mapper.SessionFields),
	}))
	if err != nil {
		return domain.SessionState{}, err
	}
	stats, err := r.rpc.Send(ctx, transmission.MethodSessionStats, jsonvalue.Null())
	if err != nil {
		return domain.SessionState{}, err
	}
	state, err := mapper.MapSessionState(session, stats)
	if err != nil {
		return domain.SessionState{}, err
	}
	err = r.writeThrough(ctx, func(cache *offline.Cache) error {
		_, err := cache.UpdateSession(ctx, r.key, state)
		return err
	})
	if err != nil {
		return domain.SessionState{}, err
	}
	return state, nil
}

// CachedState returns the offline session state, or nil when none is fresh.
func (r *SessionRepository) CachedState(ctx context.Context) (*offline.SessionSection, error) {
	snapshot, err := r.cached(ctx)
	if err != nil || snapshot == nil {
		return nil, err
	}
	return snapshot.Session, nil
}

// UpdateSettings applies settings. A no-op update sends nothing.
func (r *SessionRepository) UpdateSettings(ctx context.Context, settings domain.SessionSettings) error {
	args, ok := MakeSessionSettingsArguments(settings)
	if !ok {
		r.skip(transmission.MethodSessionSet)
		return nil
	}
	_, err := r.call(ctx, transmission.MethodSessionSet, args)
	return err
}

// FreeSpace reports the bytes available under path on the daemon's host.
func (r *SessionRepository) FreeSpace(ctx context.Context, path string) (int64, error) {
	resp, err := r.rpc.Send(ctx, transmission.MethodFreeSpace, jsonvalue.Object(map[string]jsonvalue.Value{
		"path": jsonvalue.String(path),
	}))
	if err != nil {
		return 0, err
	}
	return mapper.MapFreeSpaceBytes(resp)
}
