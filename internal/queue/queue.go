package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/bobarin/scenecut/internal/models"
)

const (
	QueueRender = "queue:render"

	JobTypeRender = "render"

	resultKeyPrefix = "render:result:"
	ResultTTL       = 24 * time.Hour
)

type Queue struct {
	client *redis.Client
}

type Job struct {
	ID        uuid.UUID          `json:"id"`
	Type      string             `json:"type"`
	Request   *models.JobRequest `json:"request"`
	CreatedAt time.Time          `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueRender enqueues a render job
func (q *Queue) EnqueueRender(ctx context.Context, jobID uuid.UUID, req *models.JobRequest) error {
	job := &Job{
		ID:      jobID,
		Type:    JobTypeRender,
		Request: req,
	}
	return q.Enqueue(ctx, QueueRender, job)
}

// StoreResult saves a finished job's output for later lookup.
func (q *Queue) StoreResult(ctx context.Context, jobID uuid.UUID, result *models.RenderResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return q.client.Set(ctx, resultKeyPrefix+jobID.String(), data, ResultTTL).Err()
}

// GetResult returns a stored result, or nil if none exists (yet).
func (q *Queue) GetResult(ctx context.Context, jobID uuid.UUID) (*models.RenderResult, error) {
	data, err := q.client.Get(ctx, resultKeyPrefix+jobID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var result models.RenderResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}
