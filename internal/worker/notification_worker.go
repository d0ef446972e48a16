package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	name string
	run  func(ctx context.Context)
}

// Pool runs notification jobs on a fixed number of goroutines fed by a
// bounded queue.
type Pool struct {
	workers int
	queue   chan job
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool builds a pool. timeout bounds each job; zero means no limit.
func NewPool(workers, queueSize int, timeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		workers: workers,
		queue:   make(chan job, queueSize),
		timeout: timeout,
		logger:  logger,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	p.logger.Info("notification workers started", zap.Int("workers", p.workers), zap.Int("queue_size", cap(p.queue)))
}

// Enqueue schedules a job. It returns false when the queue is full or the
// pool has stopped; the caller decides what to do with the work.
func (p *Pool) Enqueue(name string, run func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.queue <- job{name: name, run: run}:
		return true
	default:
		return false
	}
}

// Stop refuses new jobs and waits for queued ones to drain or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("notification workers drained")
		return nil
	case <-ctx.Done():
		p.logger.Warn("notification workers did not drain in time", zap.Int("pending", len(p.queue)))
		return ctx.Err()
	}
}

func (p *Pool) loop(id int) {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(id, j)
	}
}

func (p *Pool) run(id int, j job) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("notification job panicked", zap.Int("worker", id), zap.String("job", j.name), zap.Any("panic", r))
		}
	}()
	start := time.Now()
	j.run(ctx)
	p.logger.Debug("notification job done", zap.Int("worker", id), zap.String("job", j.name), zap.Duration("took", time.Since(start)))
}
