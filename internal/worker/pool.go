package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// Pool runs CPU-bound stages on a fixed set of goroutines so request
// handlers never do the heavy lifting themselves. Submissions beyond the
// queue depth are rejected instead of piling up.
type Pool struct {
	logger *slog.Logger

	tasks   chan *task
	workers int
	timeout time.Duration

	busy    atomic.Int64
	stopped atomic.Bool

	// Lifecycle
	done chan struct{}
	wg   sync.WaitGroup
}

type PoolConfig struct {
	Workers     int           // Goroutines executing tasks (default: 4)
	QueueDepth  int           // Tasks waiting for a free worker before rejecting
	TaskTimeout time.Duration // Deadline per task, including time spent queued (default: 30s)
}

type task struct {
	ctx    context.Context
	name   string
	fn     func(ctx context.Context) error
	result chan error
}

type Stats struct {
	Workers  int   `json:"workers"`
	Busy     int64 `json:"busy"`
	Queued   int   `json:"queued"`
	Capacity int   `json:"queue_capacity"`
}

func NewPool(logger *slog.Logger, config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueDepth < 0 {
		config.QueueDepth = 0
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Second
	}

	return &Pool{
		logger:  logger,
		tasks:   make(chan *task, config.QueueDepth),
		workers: config.Workers,
		timeout: config.TaskTimeout,
		done:    make(chan struct{}),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	p.logger.Info("worker pool started",
		"workers", p.workers,
		"queue_depth", cap(p.tasks),
		"task_timeout", p.timeout,
	)
}

// Stop waits for running tasks; queued ones are dropped and their callers
// see their own deadline.
func (p *Pool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.done)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Run executes fn on a worker and waits for it. It fails fast with
// domain.ErrServiceBusy when the queue is full and with
// domain.ErrProcessingTimeout when the task deadline passes. A task that
// outlives its deadline keeps its worker until fn returns; its result is discarded.
func (p *Pool) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if p.stopped.Load() {
		return domain.ErrServiceBusy.WithError(errors.New("worker pool stopped"))
	}

	taskCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	t := &task{ctx: taskCtx, name: name, fn: fn, result: make(chan error, 1)}

	// Non-blocking send
	select {
	case p.tasks <- t:
	default:
		p.logger.Warn("task rejected - queue full", "task", name, "queue_depth", cap(p.tasks))
		return domain.ErrServiceBusy
	}

	select {
	case err := <-t.result:
		return classify(name, err)
	case <-taskCtx.Done():
		return classify(name, taskCtx.Err())
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:  p.workers,
		Busy:     p.busy.Load(),
		Queued:   len(p.tasks),
		Capacity: cap(p.tasks),
	}
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case t := <-p.tasks:
			p.execute(t)
		}
	}
}

func (p *Pool) execute(t *task) {
	// Expired while queued
	if err := t.ctx.Err(); err != nil {
		t.result <- err
		return
	}

	p.busy.Add(1)
	defer p.busy.Add(-1)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", t.name, "panic", r)
			t.result <- domain.ErrInternal.WithError(fmt.Errorf("%s panicked: %v", t.name, r))
		}
	}()

	err := t.fn(t.ctx)
	p.logger.Debug("task finished", "task", t.name, "duration_ms", time.Since(start).Milliseconds())
	t.result <- err
}

func classify(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrProcessingTimeout.WithError(fmt.Errorf("%s: %w", name, err))
	}
	return err
}
