package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/five82/remora/internal/domain"
	"github.com/five82/remora/internal/logging"
	"github.com/five82/remora/internal/state"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// Source is what the poller refreshes from. *Connection satisfies it.
type Source interface {
	FetchList(ctx context.Context) ([]domain.Torrent, error)
	FetchState(ctx context.Context) (domain.SessionState, error)
}

// StartPoller launches a background goroutine that refreshes the store. The
// wait between polls doubles with each consecutive failure, up to maxBackoff.
// It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, source Source, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger = logging.NewComponentLogger(logger, "poller")
	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			refresh(ctx, store, source, logger)
			timer.Reset(calculateBackoff(store.Snapshot().ConsecutiveFailures, interval))
		}
	}()
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

func refresh(ctx context.Context, store *state.Store, source Source, logger *slog.Logger) error {
	torrents, err := source.FetchList(ctx)
	if err != nil {
		return recordFailure(ctx, store, logger, "torrent poll failed", err)
	}
	session, err := source.FetchState(ctx)
	if err != nil {
		return recordFailure(ctx, store, logger, "session poll failed", err)
	}
	store.Update(torrents, &session, nil)
	return nil
}

func recordFailure(ctx context.Context, store *state.Store, logger *slog.Logger, msg string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Debug("poll cancelled")
		return err
	}
	store.Update(nil, nil, err)
	logger.Warn(msg, logging.Error(err))
	return err
}
