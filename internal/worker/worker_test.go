package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/models"
	"github.com/bobarin/scenecut/internal/queue"
)

type fakeQueue struct {
	jobs chan *queue.Job

	mu      sync.Mutex
	results map[uuid.UUID]*models.RenderResult
	stored  chan uuid.UUID
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		jobs:    make(chan *queue.Job, 4),
		results: map[uuid.UUID]*models.RenderResult{},
		stored:  make(chan uuid.UUID, 4),
	}
}

func (q *fakeQueue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (q *fakeQueue) StoreResult(ctx context.Context, jobID uuid.UUID, result *models.RenderResult) error {
	q.mu.Lock()
	q.results[jobID] = result
	q.mu.Unlock()
	q.stored <- jobID
	return nil
}

func (q *fakeQueue) result(id uuid.UUID) *models.RenderResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.results[id]
}

type fakeStore struct {
	mu        sync.Mutex
	running   []uuid.UUID
	completed map[uuid.UUID]*models.RenderResult
}

func (s *fakeStore) MarkRenderJobRunning(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = append(s.running, id)
	return nil
}

func (s *fakeStore) CompleteRenderJob(ctx context.Context, id uuid.UUID, result *models.RenderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		s.completed = map[uuid.UUID]*models.RenderResult{}
	}
	s.completed[id] = result
	return errors.New("database unavailable") // logged, never fatal
}

type fakeRenderer struct {
	mu   sync.Mutex
	seen []string
}

func (r *fakeRenderer) Handle(ctx context.Context, jobID string, req *models.JobRequest) *models.RenderResult {
	r.mu.Lock()
	r.seen = append(r.seen, jobID)
	r.mu.Unlock()

	if len(req.Scenes) == 0 {
		return models.ErrorResult("scenes are required")
	}
	return &models.RenderResult{Success: true, VideoData: "data:video/mp4;base64,AAAA"}
}

func waitStored(t *testing.T, q *fakeQueue) uuid.UUID {
	t.Helper()
	select {
	case id := <-q.stored:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a stored result")
		return uuid.Nil
	}
}

func TestWorkerProcessesJobs(t *testing.T) {
	q := newFakeQueue()
	store := &fakeStore{}
	renderer := &fakeRenderer{}
	w := New(q, store, renderer, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx, 2)
		close(done)
	}()

	okID, badID, emptyID := uuid.New(), uuid.New(), uuid.New()
	q.jobs <- &queue.Job{ID: okID, Type: queue.JobTypeRender, Request: &models.JobRequest{Scenes: []models.Scene{{ImageData: "AAAA"}}}}
	q.jobs <- &queue.Job{ID: badID, Type: queue.JobTypeRender, Request: &models.JobRequest{}}
	q.jobs <- &queue.Job{ID: emptyID, Type: queue.JobTypeRender}

	for i := 0; i < 3; i++ {
		waitStored(t, q)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	require.NotNil(t, q.result(okID))
	assert.True(t, q.result(okID).Success)
	assert.Equal(t, "scenes are required", q.result(badID).Error)
	assert.Equal(t, "job has no request payload", q.result(emptyID).Error)

	assert.ElementsMatch(t, []string{okID.String(), badID.String()}, renderer.seen)
	assert.Len(t, store.running, 3)
	assert.Len(t, store.completed, 3)
}

func TestWorkerWithoutStore(t *testing.T) {
	q := newFakeQueue()
	w := New(q, nil, &fakeRenderer{}, zap.NewNop())

	id := uuid.New()
	w.handleRender(context.Background(), &queue.Job{ID: id, Request: &models.JobRequest{Scenes: []models.Scene{{ImageURL: "x"}}}})

	assert.Equal(t, id, waitStored(t, q))
	assert.True(t, q.result(id).Success)
}
