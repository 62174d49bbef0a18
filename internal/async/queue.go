package async

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Job is the smallest useful unit of intake work.
type Job struct {
	TenantID    string
	Path        string
	SubmittedAt time.Time
}

// Handler processes one job. Errors are logged, not retried here.
type Handler func(ctx context.Context, job Job) error

// Queue accepts jobs and processes them on a bounded worker pool.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

type workerQueue struct {
	jobs    chan Job
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewQueue starts workers goroutines (NumCPU when workers <= 0) draining a
// bounded job channel.
func NewQueue(workers, buffer int, handler Handler, logger *slog.Logger) Queue {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if buffer <= 0 {
		buffer = workers * 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &workerQueue{
		jobs:    make(chan Job, buffer),
		handler: handler,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *workerQueue) work() {
	defer q.wg.Done()
	for job := range q.jobs {
		start := time.Now()
		if err := q.handler(context.Background(), job); err != nil {
			q.logger.Error("async.job_failed",
				"tenant_id", job.TenantID,
				"path", job.Path,
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			continue
		}
		q.logger.Debug("async.job_done",
			"path", job.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (q *workerQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for in-flight work, or returns
// early when ctx expires.
func (q *workerQueue) Shutdown(ctx context.Context) {
	q.once.Do(func() { close(q.jobs) })
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("async.shutdown_timeout")
	}
}
