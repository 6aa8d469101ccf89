package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sinovhub/sinov-backend/internal/service"
)

const expirySweepBatch = 200

// ExpiryWorker periodically finalizes ACTIVE sessions whose deadline has
// passed. A student who closes the browser and never returns still gets
// graded on whatever was autosaved.
type ExpiryWorker struct {
	sessions *service.SessionService
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessions *service.SessionService, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	// Keep sweeping until the backlog is clear; one pass per tick would
	// fall behind after downtime.
	for {
		n, err := w.sessions.SweepExpired(ctx, expirySweepBatch)
		if err != nil {
			w.log.Error().Err(err).Msg("Sweep failed")
			return
		}
		if n > 0 {
			w.log.Info().Int("finalized", n).Msg("Expired sessions finalized")
		}
		if n < expirySweepBatch {
			return
		}
	}
}
