package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// QueueRender holds ids of render jobs waiting for a worker.
const QueueRender = "queue:render"

type Queue struct {
	client *redis.Client
	name   string
}

type Job struct {
	ID        uuid.UUID `json:"id"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client, name: QueueRender}, nil
}

// NewWithClient wraps an existing client; name overrides the list key when set.
func NewWithClient(client *redis.Client, name string) *Queue {
	if name == "" {
		name = QueueRender
	}
	return &Queue{client: client, name: name}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue pushes a render job id onto the tail of the list.
func (q *Queue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	data, err := Encode(&Job{ID: jobID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.name, data).Err()
}

// Dequeue blocks up to timeout. It returns (nil, nil) when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	return Decode([]byte(result[1]))
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func Encode(job *Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == uuid.Nil {
		return nil, fmt.Errorf("job payload has no id")
	}
	return &job, nil
}
