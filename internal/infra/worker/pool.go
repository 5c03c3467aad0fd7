// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/infra/logging"
)

// A small worker pool for best-effort background work such as catalog sync.
// Nothing on the quota path runs here.

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool stopped")
	ErrNilTask    = errors.New("nil task")
)

type Task func(ctx context.Context) error

type job struct {
	name string
	run  Task
	ctx  context.Context
}

type Pool struct {
	wg     sync.WaitGroup
	jobs   chan job
	quit   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
	n      int
	log    *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pool{
		jobs: make(chan job, workers*4),
		quit: make(chan struct{}),
		n:    workers,
		log:  logging.Component(logger, "worker"),
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
				case j := <-p.jobs:
					p.execute(ctx, id, j)
				}
			}
		}(i)
	}
}

func (p *Pool) execute(ctx context.Context, id int, j job) {
	// carry the submitter's trace id
	runCtx := ctx
	if j.ctx != nil {
		if tid := logging.TraceIDFrom(j.ctx); tid != "" {
			runCtx = logging.WithTraceID(runCtx, tid)
		}
	}
	log := logging.With(runCtx, p.log)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Int("worker", id).Str("task", j.name).Msg("task panicked")
		}
	}()
	start := time.Now()
	if err := j.run(runCtx); err != nil {
		log.Error().Err(err).Int("worker", id).Str("task", j.name).Dur("duration", time.Since(start)).Msg("task failed")
		return
	}
	log.Info().Int("worker", id).Str("task", j.name).Dur("duration", time.Since(start)).Msg("task done")
}

// Stop stops accepting work and waits for running tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.quit)
	})
	p.wg.Wait()
}

// Submit enqueues task without blocking. ctx only contributes log fields; the task
// runs under the pool's context so it outlives the submitting request.
func (p *Pool) Submit(ctx context.Context, name string, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job{name: name, run: task, ctx: ctx}:
		return nil
	default:
		// drop when saturated to avoid back-pressure
		return ErrQueueFull
	}
}
