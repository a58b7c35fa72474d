// Package jobs runs render work on a bounded pool of workers that always pick
// the most recently requested page first.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	// ErrWorkerQueueFull is returned when the pool's queue is at capacity.
	ErrWorkerQueueFull = errors.New("worker queue full")

	// ErrPoolStopped is returned by Submit once the pool has stopped.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// WorkUnit is a single piece of work for the pool.
type WorkUnit struct {
	ID string
	// Priority orders the queue, highest first. The page cache uses the
	// entry age so the newest request runs next.
	Priority uint64
	// Run does the work. ctx is done once the pool stops; units drained at
	// shutdown run with an already cancelled ctx and must return promptly.
	Run func(ctx context.Context)
}

// PoolStatus reports a pool's current state.
type PoolStatus struct {
	Name      string     `json:"name" yaml:"name"`
	Workers   int        `json:"workers" yaml:"workers"`
	InFlight  int        `json:"in_flight" yaml:"in_flight"`
	Queue     QueueStats `json:"queue" yaml:"queue"`
	Completed int64      `json:"completed" yaml:"completed"`
	Running   bool       `json:"running" yaml:"running"`
}

// PoolConfig configures a new Pool.
type PoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default: 1)
	QueueSize   int // Queue size (default: 10000)
}

// Pool manages a set of workers pulling from one shared priority queue.
type Pool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	queueSize   int

	queue *Queue

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	inFlight  atomic.Int32
	completed atomic.Int64
}

// NewPool creates a new worker pool. Call Start to begin processing.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "pool"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 10000
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	return &Pool{
		name:        name,
		logger:      logger.With("pool", name, "workers", workerCount),
		workerCount: workerCount,
		queueSize:   queueSize,
		queue:       NewQueue(),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Start launches the workers. They run until ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	if p.running {
		return fmt.Errorf("pool %s already started", p.name)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		<-ctx.Done()
		p.shutdown(ctx)
	}()

	p.logger.Debug("pool started")
	return nil
}

// Stop cancels the workers, drains the queue and waits for everything to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		// Never started: nothing else will drain the queue.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p.shutdown(ctx)
		return
	}
	cancel()
	p.wg.Wait()
}

// shutdown refuses new work and runs what is still queued with the cancelled
// ctx so that nobody waits forever on a unit that was accepted.
func (p *Pool) shutdown(ctx context.Context) {
	p.mu.Lock()
	p.stopped = true
	p.running = false
	p.mu.Unlock()

	units := p.queue.Drain()
	for _, unit := range units {
		unit.Run(ctx)
	}
	p.logger.Debug("pool stopping", "drained", len(units))
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		unit := p.queue.Pop(ctx.Done())
		if unit == nil {
			return
		}

		p.inFlight.Add(1)
		unit.Run(ctx)
		p.inFlight.Add(-1)
		p.completed.Add(1)
		p.logger.Debug("worker completed unit", "worker_id", id, "unit_id", unit.ID)
	}
}

// Submit adds a work unit to the pool's queue. Units may be submitted before
// Start; they run once workers are up.
func (p *Pool) Submit(unit *WorkUnit) error {
	if unit == nil || unit.Run == nil {
		return ErrNilWorkUnit
	}

	// Held across the push so shutdown never misses a unit it has to drain.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("%w: %s", ErrPoolStopped, p.name)
	}

	if p.queue.Len() >= p.queueSize {
		p.logger.Warn("pool queue full", "unit_id", unit.ID)
		return fmt.Errorf("%w: %s", ErrWorkerQueueFull, p.name)
	}
	return p.queue.Push(unit)
}

// Status returns current pool status.
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return PoolStatus{
		Name:      p.name,
		Workers:   p.workerCount,
		InFlight:  int(p.inFlight.Load()),
		Queue:     p.queue.Stats(),
		Completed: p.completed.Load(),
		Running:   running,
	}
}
