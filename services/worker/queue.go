package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/instantcocoa/rehoboam/pkg/cache"
	"github.com/instantcocoa/rehoboam/services/evaluation"
)

const defaultPollTimeout = 2 * time.Second

// MemoryQueue is a channel-backed queue for tests and memory mode.
type MemoryQueue struct {
	tasks       chan *Task
	pollTimeout time.Duration
}

// NewMemoryQueue creates a memory queue with the given capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity < 1 {
		capacity = 1024
	}
	return &MemoryQueue{
		tasks:       make(chan *Task, capacity),
		pollTimeout: defaultPollTimeout,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, evaluationID string) (evaluation.TaskHandle, error) {
	task := newTask(evaluationID)
	select {
	case q.tasks <- task:
		return handleFor(task), nil
	default:
		return evaluation.TaskHandle{}, fmt.Errorf("queue full")
	}
}

func (q *MemoryQueue) EnqueueBatch(ctx context.Context, evaluationIDs []string) ([]evaluation.TaskHandle, error) {
	handles := make([]evaluation.TaskHandle, 0, len(evaluationIDs))
	for _, id := range evaluationIDs {
		handle, err := q.Enqueue(ctx, id)
		if err != nil {
			return handles, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	timer := time.NewTimer(q.pollTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case task := <-q.tasks:
		return task, nil
	case <-timer.C:
		return nil, nil
	}
}

// Len returns the number of queued tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

// claimTTL bounds how long a dequeued task's claim key lives. It must
// outlive the longest task run so a crashed worker's redelivery is
// still recognized as a duplicate while the record settles.
const defaultClaimTTL = 2 * time.Hour

// redisClient is the subset of the cache client the queue uses.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) error
	BRPop(ctx context.Context, timeout time.Duration, key string) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// RedisQueue is a Redis-list-backed queue for production mode.
type RedisQueue struct {
	client      redisClient
	key         string
	pollTimeout time.Duration
	claimTTL    time.Duration
}

// NewRedisQueue creates a Redis queue on the named list.
func NewRedisQueue(client *cache.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:      client,
		key:         key,
		pollTimeout: defaultPollTimeout,
		claimTTL:    defaultClaimTTL,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, evaluationID string) (evaluation.TaskHandle, error) {
	task := newTask(evaluationID)
	if err := q.client.LPush(ctx, q.key, task); err != nil {
		return evaluation.TaskHandle{}, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return handleFor(task), nil
}

func (q *RedisQueue) EnqueueBatch(ctx context.Context, evaluationIDs []string) ([]evaluation.TaskHandle, error) {
	handles := make([]evaluation.TaskHandle, 0, len(evaluationIDs))
	for _, id := range evaluationIDs {
		handle, err := q.Enqueue(ctx, id)
		if err != nil {
			return handles, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	payload, err := q.client.BRPop(ctx, q.pollTimeout, q.key)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if payload == "" {
		return nil, nil
	}

	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	// Redis lists deliver at least once. A claim key per task ID drops
	// replays of a message that was already handed to a worker.
	claimed, err := q.client.SetNX(ctx, q.key+":claim:"+task.TaskID, "1", q.claimTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	if !claimed {
		return nil, nil
	}
	return &task, nil
}

// Len returns the number of queued tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key)
}

func newTask(evaluationID string) *Task {
	return &Task{
		TaskID:       uuid.New().String(),
		EvaluationID: evaluationID,
		EnqueuedAt:   time.Now(),
	}
}

func handleFor(task *Task) evaluation.TaskHandle {
	return evaluation.TaskHandle{
		TaskID:       task.TaskID,
		EvaluationID: task.EvaluationID,
		EnqueuedAt:   task.EnqueuedAt,
	}
}

// Ensure implementations satisfy the interface
var (
	_ Queue = (*MemoryQueue)(nil)
	_ Queue = (*RedisQueue)(nil)
)
