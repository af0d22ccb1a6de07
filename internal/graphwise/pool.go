package graphwise

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Ontotext-AD/embedding-model-clients/internal/metrics"
)

// Task is a unit of work run by the Pool. ctx is cancelled once the pool is
// shut down; tasks should abandon their work when it is.
type Task func(ctx context.Context)

// PoolConfig sizes a Pool.
type PoolConfig struct {
	MinWorkers  int           // workers kept alive while idle
	MaxWorkers  int           // upper bound on concurrent workers
	QueueSize   int           // pending tasks held before caller-runs kicks in
	IdleTimeout time.Duration // how long a worker above MinWorkers waits for work
}

// Pool is a bounded worker pool with caller-runs backpressure. Submit never
// blocks on a full queue and never drops work: when every worker is busy and
// the queue is full, the task runs on the submitting goroutine.
type Pool struct {
	cfg    PoolConfig
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu      sync.Mutex
	workers int
	closed  bool
	wg      sync.WaitGroup
}

// NewPool starts an empty pool. Workers are spawned lazily on Submit.
func NewPool(cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	cfg.MinWorkers = max(1, min(cfg.MinWorkers, cfg.MaxWorkers))
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Submit schedules task. Below MinWorkers a new worker takes it; otherwise
// it is queued; with a full queue a new worker is started up to MaxWorkers;
// past that the task runs synchronously on the caller. A shut down pool runs
// the task inline with its cancelled context.
func (p *Pool) Submit(task Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		task(p.ctx)
		return
	}
	if p.workers < p.cfg.MinWorkers {
		p.spawnLocked(task)
		p.mu.Unlock()
		return
	}
	select {
	case p.queue <- task:
		p.mu.Unlock()
		return
	default:
	}
	if p.workers < p.cfg.MaxWorkers {
		p.spawnLocked(task)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	metrics.Inc(metrics.PoolCallerRuns)
	p.logger.Debug("worker pool saturated, running task on caller")
	task(p.ctx)
}

// Workers returns the number of live workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// ShutdownNow stops the pool without draining it: the pool context is
// cancelled, workers exit after their current task, and tasks still queued
// are run on the calling goroutine with the cancelled context so their
// submitters are released. It does not wait for running tasks.
func (p *Pool) ShutdownNow() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	for {
		select {
		case task := <-p.queue:
			task(p.ctx)
		default:
			return
		}
	}
}

// Wait blocks until every worker has exited. Only meaningful after
// ShutdownNow.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) spawnLocked(first Task) {
	p.workers++
	p.wg.Add(1)
	go p.work(first)
}

func (p *Pool) work(task Task) {
	defer p.wg.Done()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		if task != nil {
			task(p.ctx)
			task = nil
		}
		idle.Reset(p.cfg.IdleTimeout)

		select {
		case <-p.ctx.Done():
			p.exit()
			return
		case task = <-p.queue:
		case <-idle.C:
			if p.retire() {
				return
			}
		}
	}
}

// retire lets an idle worker exit while the pool is above MinWorkers.
func (p *Pool) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workers > p.cfg.MinWorkers {
		p.workers--
		return true
	}
	return false
}

func (p *Pool) exit() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}
