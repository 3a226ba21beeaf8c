package worker

import (
	"context"
	"errors"
	"time"

	"life-reality/internal/optimize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobQueue is the part of Queue the worker needs. Tests swap it out.
type JobQueue interface {
	Pop(ctx context.Context) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (Job, bool, error)
	Save(ctx context.Context, job Job) error
}

type Worker struct {
	queue     JobQueue
	optimizer optimize.Optimizer
	logger    *zap.Logger
	observe   func(Status)
	timeout   time.Duration
}

type Option func(*Worker)

// WithObserver is called with the final status of every processed job.
func WithObserver(fn func(Status)) Option {
	return func(w *Worker) { w.observe = fn }
}

func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

// saveTimeout bounds the final write of a job record.
const saveTimeout = 5 * time.Second

func NewWorker(queue JobQueue, optimizer optimize.Optimizer, logger *zap.Logger, opts ...Option) *Worker {
	w := &Worker{
		queue:     queue,
		optimizer: optimizer,
		logger:    logger,
		observe:   func(Status) {},
		timeout:   90 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		if ctx.Err() != nil {
			w.logger.Info("Worker shutting down")
			return nil
		}

		id, err := w.queue.Pop(ctx)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return nil
			}
			w.logger.Error("Queue error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		w.processJob(ctx, id)
	}
}

func (w *Worker) processJob(ctx context.Context, id uuid.UUID) {
	logger := w.logger.With(zap.String("job_id", id.String()))
	logger.Info("Processing started")

	job, ok, err := w.queue.Get(ctx, id)
	if err != nil {
		logger.Error("Job failed: record unreadable", zap.Error(err))
		return
	}
	if !ok {
		logger.Warn("Job record expired before processing")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	res, err := w.optimizer.Optimize(jobCtx, job.Request)
	if err != nil {
		logger.Error("Optimization failed", zap.Error(err))
		w.finish(ctx, job, nil, err.Error())
		return
	}

	w.finish(ctx, job, &res, "")
	logger.Info("Optimization complete", zap.String("article_id", job.ArticleID))
}

func (w *Worker) finish(ctx context.Context, job Job, res *optimize.Result, msg string) {
	now := time.Now().UTC()
	job.FinishedAt = &now
	job.Result = res
	job.Error = msg
	job.Status = StatusDone
	if msg != "" {
		job.Status = StatusFailed
	}

	// The outcome is recorded even when shutdown cancelled the job
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := w.queue.Save(saveCtx, job); err != nil {
		w.logger.Error("Failed to save result", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	w.observe(job.Status)
}
