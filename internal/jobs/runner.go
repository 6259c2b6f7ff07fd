// Package jobs runs background work detached from the request that enqueued
// it, with a bounded queue and a fixed pool of workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"doccontrol/api/internal/logger"
)

var (
	ErrQueueFull = errors.New("jobs: queue is full")
	ErrStopped   = errors.New("jobs: runner is stopped")
)

type Kind string

type Job struct {
	ID         string
	Kind       Kind
	EntityID   int64
	EnqueuedAt time.Time
}

type Handler interface {
	Kind() Kind
	Run(ctx context.Context, job Job) error
	// OnFailure runs after Run returned an error, panicked or timed out. It
	// must leave the entity in a retryable status.
	OnFailure(ctx context.Context, job Job, err error)
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Runner struct {
	log      *logger.Logger
	cfg      Config
	queue    chan Job
	mu       sync.RWMutex
	handlers map[Kind]Handler
	stopped  bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewRunner(cfg Config, log *logger.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:      log.With("component", "jobs.runner"),
		cfg:      cfg,
		queue:    make(chan Job, cfg.QueueSize),
		handlers: make(map[Kind]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (r *Runner) Register(h Handler) error {
	if h == nil {
		return errors.New("jobs: nil handler")
	}
	if h.Kind() == "" {
		return errors.New("jobs: handler kind is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Kind()]; exists {
		return fmt.Errorf("jobs: handler already registered for %s", h.Kind())
	}
	r.handlers[h.Kind()] = h
	return nil
}

// Start launches the worker pool. Jobs enqueued before Start wait in the queue.
func (r *Runner) Start() {
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.log.Info("job runner started", "workers", r.cfg.Workers, "queue_size", r.cfg.QueueSize)
}

// Enqueue schedules a job without blocking.
func (r *Runner) Enqueue(kind Kind, entityID int64) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return Job{}, ErrStopped
	}
	if _, ok := r.handlers[kind]; !ok {
		return Job{}, fmt.Errorf("jobs: no handler registered for %s", kind)
	}

	job := Job{ID: uuid.NewString(), Kind: kind, EntityID: entityID, EnqueuedAt: time.Now().UTC()}
	select {
	case r.queue <- job:
		r.log.Debug("job enqueued", "job_id", job.ID, "kind", kind, "entity_id", entityID)
		return job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

// Stop refuses new jobs, lets workers drain the queue and waits for them until
// ctx expires. In-flight jobs are cancelled when ctx expires first.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

func (r *Runner) work(id int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.mu.RLock()
		h := r.handlers[job.Kind]
		r.mu.RUnlock()
		r.execute(id, h, job)
	}
}

func (r *Runner) execute(worker int, h Handler, job Job) {
	log := r.log.With("job_id", job.ID, "kind", job.Kind, "entity_id", job.EntityID, "worker", worker)
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	err := runSafely(ctx, h, job)
	cancel()

	if err == nil {
		log.Info("job finished", "duration_ms", time.Since(started).Milliseconds())
		return
	}

	log.Error("job failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
	failCtx, failCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer failCancel()
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("job failure hook panic", "panic", rec)
			}
		}()
		h.OnFailure(failCtx, job, err)
	}()
}

type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panic: %v", e.Value)
}

func runSafely(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return h.Run(ctx, job)
}
