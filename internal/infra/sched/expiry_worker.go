package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"gym-membership/internal/infra/metrics"
	"gym-membership/internal/usecase"
)

// ExpiryWorker periodically moves lapsed memberships to expired. The cron
// endpoints and gymctl call Sweep directly.
type ExpiryWorker struct {
	interval time.Duration
	uc       usecase.MembershipUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, uc usecase.MembershipUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		uc:       uc,
		log:      &exprLog,
	}
}

// Sweep runs one expiry pass. Running it again right away changes nothing.
func (w *ExpiryWorker) Sweep(ctx context.Context) (*usecase.ExpireResult, error) {
	start := time.Now()
	res, err := w.uc.CheckExpired(ctx)
	metrics.ObserveJob("expiry_sweep", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if res.Count > 0 {
		metrics.IncMembershipsExpired(res.Count)
		w.log.Info().Int("count", res.Count).Msg("memberships expired")
	}
	return res, nil
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil {
		w.log.Error().Err(err).Msg("expiry worker error")
	}
}
