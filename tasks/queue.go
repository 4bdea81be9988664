package tasks

import (
	"context"
	"time"

	"price-tracker/utils"
)

// JobKind names a job type on the queue.
type JobKind string

// JobRefreshProduct re-crawls one product's price.
const JobRefreshProduct JobKind = "refresh-product"

// Job is one unit of work submitted to the queue.
type Job struct {
	Kind      JobKind
	ProductID int64
}

// Queue delivers submitted jobs at least once. Ordering across distinct
// jobs is not guaranteed; submitters must not depend on it.
type Queue interface {
	Submit(job Job)
}

// Handler processes one delivered job.
type Handler func(ctx context.Context, job Job) error

// LocalQueue runs jobs on an in-process worker pool. A failing job is
// retried with back-off a bounded number of times, then logged and
// dropped; sibling jobs are unaffected.
type LocalQueue struct {
	pool    *utils.WorkerPool
	retry   *utils.RetryConfig
	handler Handler
	logger  *utils.Logger
}

// NewLocalQueue creates a queue with the given worker count and handler.
func NewLocalQueue(workers int, handler Handler, logger *utils.Logger) *LocalQueue {
	return &LocalQueue{
		pool: utils.NewWorkerPool(workers, 0),
		retry: &utils.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		handler: handler,
		logger:  logger,
	}
}

// Submit enqueues the job. It returns without waiting for the outcome.
func (q *LocalQueue) Submit(job Job) {
	q.pool.Submit(func() {
		err := q.retry.Do(context.Background(), string(job.Kind), func() error {
			return q.handler(context.Background(), job)
		})
		if err != nil {
			q.logger.Error("[queue] Job %s (product %d) dropped: %v", job.Kind, job.ProductID, err)
		}
	})
}

// Wait blocks until every submitted job has finished. Used by short-lived
// callers (the CLI) that must not exit with work in flight.
func (q *LocalQueue) Wait() {
	q.pool.Wait()
}
