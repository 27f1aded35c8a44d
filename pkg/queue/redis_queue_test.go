package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *RedisSeedQueue {
	t.Helper()
	redisSrv := miniredis.RunT(t)
	q, err := NewRedisSeedQueue(RedisQueueConfig{
		Addr:       redisSrv.Addr(),
		Stream:     "test:seed",
		Group:      "test-group",
		Consumer:   "consumer-1",
		Block:      50 * time.Millisecond,
		RetryDelay: time.Millisecond,
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestRedisSeedQueueEnqueueAndGetJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, 42)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID == "" || job.Status != StatusQueued {
		t.Fatalf("unexpected job: %+v", job)
	}
	got, ok, err := q.GetJob(ctx, job.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if got.SellerID != 42 || got.Status != StatusQueued {
		t.Fatalf("unexpected stored job: %+v", got)
	}
	if _, ok, _ := q.GetJob(ctx, "missing"); ok {
		t.Fatalf("expected missing job lookup to report false")
	}
}

func TestRedisSeedQueueRejectsInvalidSeller(t *testing.T) {
	q := newTestQueue(t)
	if _, err := q.Enqueue(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero seller id")
	}
}

func TestRedisSeedQueueConsumerMarksDone(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan SeedJob, 1)
	q.Start(ctx, 1, func(_ context.Context, job SeedJob) (int, error) {
		handled <- job
		return 10, nil
	})
	job, err := q.Enqueue(ctx, 7)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-handled:
		if got.ID != job.ID || got.SellerID != 7 || got.Attempts != 1 {
			t.Fatalf("unexpected handled job: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for handler")
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, _, err := q.GetJob(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Status == StatusDone {
			if got.Inserted != 10 {
				t.Fatalf("inserted = %d, want 10", got.Inserted)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job never reached done status")
}

func TestRedisSeedQueueFailsAfterMaxRetries(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Start(ctx, 1, func(context.Context, SeedJob) (int, error) {
		return 0, errors.New("db down")
	})
	job, err := q.Enqueue(ctx, 7)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _, err := q.GetJob(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Status == StatusFailed {
			if got.ErrorMessage != "db down" || got.Attempts != 2 {
				t.Fatalf("unexpected failed job: %+v", got)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job never reached failed status")
}

func TestRedisSeedQueueRequeueAndAckSuccess(t *testing.T) {
	q, ctx, msgID, job := newPendingQueueMessage(t)

	if err := q.requeueAndAck(ctx, msgID, job.ID, job.SellerID); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0]
	if got.Values["job_id"] != job.ID || got.Values["seller_id"] != "9" {
		t.Fatalf("unexpected requeued payload: %+v", got.Values)
	}
}

func TestRedisSeedQueueRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msgID, job := newPendingQueueMessage(t)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceledCtx, msgID, job.ID, job.SellerID); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}
}

func newPendingQueueMessage(t *testing.T) (*RedisSeedQueue, context.Context, string, SeedJob) {
	t.Helper()
	q := newTestQueue(t)
	ctx := context.Background()
	q.ensureGroup(ctx)

	job, err := q.Enqueue(ctx, 9)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}
	return q, ctx, streams[0].Messages[0].ID, job
}
