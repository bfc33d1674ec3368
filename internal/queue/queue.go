package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const QueueCompile = "queue:compile"

type Queue struct {
	client *redis.Client
}

// CompileJob is the queue payload: the compilation row holds the full scene
// graph, so the message only carries its id.
type CompileJob struct {
	ID            uuid.UUID `json:"id"`
	CompilationID uuid.UUID `json:"compilation_id"`
	CreatedAt     time.Time `json:"created_at"`
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

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueCompile queues one compilation for the worker pool.
func (q *Queue) EnqueueCompile(ctx context.Context, compilationID uuid.UUID) error {
	job := &CompileJob{
		ID:            uuid.New(),
		CompilationID: compilationID,
		CreatedAt:     time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, QueueCompile, data).Err()
}

// Dequeue blocks up to timeout for the next compile job. A nil job with nil
// error means the timeout elapsed with an empty queue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*CompileJob, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueCompile).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job CompileJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueCompile).Result()
}
