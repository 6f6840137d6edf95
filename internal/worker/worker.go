package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/logging"
	"github.com/bobarin/scenecut/internal/models"
	"github.com/bobarin/scenecut/internal/queue"
)

const (
	dequeueTimeout = 5 * time.Second
	errorBackoff   = time.Second
)

// Renderer runs one job and always returns a result.
type Renderer interface {
	Handle(ctx context.Context, jobID string, req *models.JobRequest) *models.RenderResult
}

// JobQueue is the intake the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error)
	StoreResult(ctx context.Context, jobID uuid.UUID, result *models.RenderResult) error
}

// JobStore records job history. Optional.
type JobStore interface {
	MarkRenderJobRunning(ctx context.Context, id uuid.UUID) error
	CompleteRenderJob(ctx context.Context, id uuid.UUID, result *models.RenderResult) error
}

type Worker struct {
	queue    JobQueue
	store    JobStore // nil when no database is configured
	renderer Renderer
	logger   *zap.Logger
}

func New(q JobQueue, store JobStore, renderer Renderer, logger *zap.Logger) *Worker {
	return &Worker{
		queue:    q,
		store:    store,
		renderer: renderer,
		logger:   logger.Named("worker"),
	}
}

// Start consumes the render queue with concurrency loops and blocks until ctx
// is cancelled and in-flight jobs have finished.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	w.logger.Info("worker started", zap.Int("concurrency", concurrency))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processQueue(ctx, queue.QueueRender)
		}()
	}

	<-ctx.Done()
	w.logger.Info("worker shutting down, waiting for in-flight jobs")
	wg.Wait()
}

func (w *Worker) processQueue(ctx context.Context, queueName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, queueName, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", zap.String("queue", queueName), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
			continue
		}

		if job == nil {
			continue // No job available, retry
		}

		w.handleRender(ctx, job)
	}
}

// handleRender renders a job and records its outcome. Bookkeeping runs on a
// context that survives shutdown so a finished result is never dropped.
func (w *Worker) handleRender(ctx context.Context, job *queue.Job) {
	logger := logging.WithJobID(w.logger, job.ID.String())
	bookkeeping := context.WithoutCancel(ctx)
	start := time.Now()

	logger.Info("processing job", zap.String("type", job.Type))

	if w.store != nil {
		if err := w.store.MarkRenderJobRunning(bookkeeping, job.ID); err != nil {
			logger.Warn("failed to update job status", zap.Error(err))
		}
	}

	var result *models.RenderResult
	if job.Request == nil {
		result = models.ErrorResult("job has no request payload")
	} else {
		result = w.renderer.Handle(ctx, job.ID.String(), job.Request)
	}

	if err := w.queue.StoreResult(bookkeeping, job.ID, result); err != nil {
		logger.Error("failed to store result", zap.Error(err))
	}
	if w.store != nil {
		if err := w.store.CompleteRenderJob(bookkeeping, job.ID, result); err != nil {
			logger.Warn("failed to record job result", zap.Error(err))
		}
	}

	elapsed := time.Since(start).Milliseconds()
	if result.Success {
		logger.Info("job completed", zap.Int64("duration_ms", elapsed))
	} else {
		logger.Warn("job failed", zap.String("error", result.Error), zap.Int64("duration_ms", elapsed))
	}
}
