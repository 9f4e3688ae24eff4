package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gym-membership/internal/infra/metrics"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrNilTask     = errors.New("nil task")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is one named unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool is a small fixed-size worker pool. Submit never blocks: when the queue
// is full the task is rejected and the caller retries on its next tick.
type Pool struct {
	wg      sync.WaitGroup
	jobs    chan Task
	quit    chan struct{}
	stopped sync.Once
	n       int
	log     *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	poolLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		jobs: make(chan Task, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  &poolLog,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Msg("worker pool started")
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int("worker", id).Str("task", task.Name).Msg("task panicked")
			metrics.ObserveJob(task.Name, errors.New("panic"), time.Since(start))
		}
	}()
	err := task.Run(ctx)
	metrics.ObserveJob(task.Name, err, time.Since(start))
	if err != nil {
		p.log.Error().Err(err).Int("worker", id).Str("task", task.Name).Msg("task failed")
	}
}

// Stop signals the workers and waits for in-flight tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.stopped.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return ErrNilTask
	}
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		metrics.IncWorkerQueueRejected()
		return ErrQueueFull
	}
}
