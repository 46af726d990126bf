package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned when the queue is not accepting work.
	ErrQueueClosed = errors.New("queue closed")
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines. Jobs still
// buffered when Stop is called are handed to the workers before they exit,
// bounded by DrainTimeout.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Calling it more than once is a no-op.
// Handlers see ctx's values but not its cancellation: only Stop ends the
// workers, so buffered jobs still run after a shutdown signal.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop stops accepting jobs, drains what is buffered and waits for workers.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.closed {
		q.closed = true
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.retries.Wait()
	close(q.jobs)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(q.cfg.DrainTimeout):
		q.logger.Warn("queue drain timed out", zap.Int("pending", len(q.jobs)))
		q.cancel()
		<-done
	}
	q.cancel()
	q.logger.Info("queue stopped")
}

// Pending reports the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Enqueue pushes a job onto the queue, blocking until there is room or ctx ends.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.accepting(); err != nil {
		return err
	}
	stamp(&job)

	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", q.name, ctx.Err())
	case <-q.ctx.Done():
		return fmt.Errorf("enqueue %s: %w", q.name, ErrQueueClosed)
	case q.jobs <- job:
		return nil
	}
}

// TryEnqueue pushes a job without blocking.
func (q *Queue) TryEnqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if err := q.accepting(); err != nil {
		return err
	}
	stamp(&job)

	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue) accepting() error {
	if !q.started || q.closed {
		return fmt.Errorf("enqueue %s: %w", q.name, ErrQueueClosed)
	}
	return nil
}

func stamp(job *Job) {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.handler(q.ctx, job); err != nil {
			q.handleFailure(job, err)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if job.Attempt > q.cfg.MaxRetries {
		q.logger.Error("job exceeded retries", fields...)
		return
	}

	q.mu.RLock()
	closed := q.closed
	if !closed {
		q.retries.Add(1)
	}
	q.mu.RUnlock()
	if closed {
		q.logger.Error("job dropped during shutdown", fields...)
		return
	}
	q.logger.Warn("job failed, retrying", fields...)

	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
		}
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			q.logger.Error("job dropped during shutdown", zap.String("job_id", j.ID))
			return
		}
		select {
		case q.jobs <- j:
		default:
			q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(ErrQueueFull))
		}
	}(job)
}
