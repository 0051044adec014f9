package worker

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(4)
	q.pollTimeout = 20 * time.Millisecond
	ctx := context.Background()

	handle, err := q.Enqueue(ctx, "eval-1")
	if err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	if handle.EvaluationID != "eval-1" {
		t.Errorf("handle references %s, want eval-1", handle.EvaluationID)
	}
	if handle.TaskID == "" {
		t.Error("expected a task ID")
	}
	if handle.EnqueuedAt.IsZero() {
		t.Error("expected enqueue timestamp")
	}

	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("failed to dequeue: %v", err)
	}
	if task == nil {
		t.Fatal("expected a task")
	}
	if task.EvaluationID != "eval-1" || task.TaskID != handle.TaskID {
		t.Errorf("dequeued task does not match handle: %+v", task)
	}
}

func TestMemoryQueue_DequeueTimeout(t *testing.T) {
	q := NewMemoryQueue(4)
	q.pollTimeout = 20 * time.Millisecond

	task, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil task on empty queue, got %+v", task)
	}
}

func TestMemoryQueue_DequeueCancellation(t *testing.T) {
	q := NewMemoryQueue(4)
	q.pollTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := q.Dequeue(ctx)
	if err == nil {
		t.Fatal("expected context error after cancellation")
	}
}

func TestMemoryQueue_EnqueueBatch(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	ids := []string{"a", "b", "c"}
	handles, err := q.EnqueueBatch(ctx, ids)
	if err != nil {
		t.Fatalf("failed to enqueue batch: %v", err)
	}
	if len(handles) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(handles))
	}
	for i, handle := range handles {
		if handle.EvaluationID != ids[i] {
			t.Errorf("handle %d references %s, want %s", i, handle.EvaluationID, ids[i])
		}
	}
	if q.Len() != 3 {
		t.Errorf("expected 3 queued tasks, got %d", q.Len())
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "a"); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, "b"); err == nil {
		t.Fatal("expected error on full queue")
	}
}

// fakeRedis scripts list pops and honors set-if-absent semantics for
// claim keys.
type fakeRedis struct {
	pops   []string
	claims map[string]bool
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) error {
	return nil
}

func (f *fakeRedis) BRPop(ctx context.Context, timeout time.Duration, key string) (string, error) {
	if len(f.pops) == 0 {
		return "", nil
	}
	payload := f.pops[0]
	f.pops = f.pops[1:]
	return payload, nil
}

func (f *fakeRedis) LLen(ctx context.Context, key string) (int64, error) {
	return int64(len(f.pops)), nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if f.claims == nil {
		f.claims = make(map[string]bool)
	}
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func TestRedisQueue_DuplicateDeliveryDropped(t *testing.T) {
	payload := `{"task_id":"t1","evaluation_id":"eval-1"}`
	fake := &fakeRedis{pops: []string{payload, payload}}
	q := &RedisQueue{
		client:      fake,
		key:         "evaluations",
		pollTimeout: 20 * time.Millisecond,
		claimTTL:    time.Hour,
	}
	ctx := context.Background()

	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("first dequeue failed: %v", err)
	}
	if task == nil || task.TaskID != "t1" {
		t.Fatalf("expected task t1, got %+v", task)
	}
	if !fake.claims["evaluations:claim:t1"] {
		t.Error("expected a claim key for the dequeued task")
	}

	// Same message delivered again: the claim already exists, so the
	// replay is dropped like an empty poll.
	task, err = q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("second dequeue failed: %v", err)
	}
	if task != nil {
		t.Errorf("expected the replayed task to be dropped, got %+v", task)
	}
}

func TestRedisQueue_DistinctTasksBothClaimed(t *testing.T) {
	fake := &fakeRedis{pops: []string{
		`{"task_id":"t1","evaluation_id":"eval-1"}`,
		`{"task_id":"t2","evaluation_id":"eval-1"}`,
	}}
	q := &RedisQueue{
		client:      fake,
		key:         "evaluations",
		pollTimeout: 20 * time.Millisecond,
		claimTTL:    time.Hour,
	}
	ctx := context.Background()

	first, err := q.Dequeue(ctx)
	if err != nil || first == nil {
		t.Fatalf("first dequeue: task=%+v err=%v", first, err)
	}
	second, err := q.Dequeue(ctx)
	if err != nil || second == nil {
		t.Fatalf("second dequeue: task=%+v err=%v", second, err)
	}
	if first.TaskID == second.TaskID {
		t.Error("expected distinct tasks to pass the claim independently")
	}
}
