package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"gym-membership/internal/infra/worker"
	"gym-membership/internal/usecase"
)

// PaymentReconciler covers payments whose webhook and verify return both went
// missing, and successful payments whose activation failed. Each tick hands
// both passes to the worker pool.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	pool       *worker.Pool
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

// ReconcileResult counts what one pass changed.
type ReconcileResult struct {
	Activated int `json:"activated"`
	Settled   int `json:"settled"`
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, pool *worker.Pool, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc:         uc,
		pool:       pool,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		log:        &recLog,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.submit()
		}
	}
}

func (w *PaymentReconciler) submit() {
	tasks := []worker.Task{
		{Name: "activation_retry", Run: func(ctx context.Context) error {
			_, err := w.retryActivations(ctx)
			return err
		}},
		{Name: "stale_pending", Run: func(ctx context.Context) error {
			_, err := w.settleStale(ctx)
			return err
		}},
	}
	for _, task := range tasks {
		if err := w.pool.Submit(task); err != nil {
			w.log.Warn().Err(err).Str("task", task.Name).Msg("reconcile task not queued")
		}
	}
}

// RunOnce runs both passes inline.
func (w *PaymentReconciler) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	activated, err := w.retryActivations(ctx)
	if err != nil {
		return nil, err
	}
	settled, err := w.settleStale(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{Activated: activated, Settled: settled}, nil
}

func (w *PaymentReconciler) retryActivations(ctx context.Context) (int, error) {
	n, err := w.uc.RetryActivations(ctx, w.batch)
	if n > 0 {
		w.log.Info().Int("count", n).Msg("memberships activated on retry")
	}
	return n, err
}

func (w *PaymentReconciler) settleStale(ctx context.Context) (int, error) {
	n, err := w.uc.ReconcileStalePending(ctx, w.staleAfter, w.batch)
	if n > 0 {
		w.log.Info().Int("count", n).Msg("stale payments settled")
	}
	return n, err
}
