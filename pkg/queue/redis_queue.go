package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// SeedJob tracks one request to seed demo sales for a seller.
type SeedJob struct {
	ID           string    `json:"id"`
	SellerID     int64     `json:"sellerId"`
	Status       string    `json:"status"`
	Inserted     int       `json:"inserted"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SeedHandler runs a job and reports how many rows it inserted.
type SeedHandler func(ctx context.Context, job SeedJob) (int, error)

// RedisSeedQueue is a Redis Streams consumer-group queue of seed jobs.
// Job status lives in a hash next to the stream so callers can poll it.
type RedisSeedQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
}

type RedisQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

func NewRedisSeedQueue(cfg RedisQueueConfig) (*RedisSeedQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "bookbazaar:seed"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "seeders"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = 24 * time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}

	return &RedisSeedQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
	}, nil
}

// Close releases the Redis client.
func (q *RedisSeedQueue) Close() error {
	return q.client.Close()
}

// Enqueue records a queued job for sellerID and publishes it on the stream.
func (q *RedisSeedQueue) Enqueue(ctx context.Context, sellerID int64) (SeedJob, error) {
	if sellerID <= 0 {
		return SeedJob{}, errors.New("sellerId required")
	}
	now := time.Now().UTC()
	job := SeedJob{
		ID:        uuid.NewString(),
		SellerID:  sellerID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return SeedJob{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: streamValues(job.ID, job.SellerID),
	}).Err(); err != nil {
		return SeedJob{}, err
	}
	return job, nil
}

// GetJob loads a job status by id.
func (q *RedisSeedQueue) GetJob(ctx context.Context, jobID string) (SeedJob, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return SeedJob{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return SeedJob{}, false, err
	}
	if len(data) == 0 {
		return SeedJob{}, false, nil
	}
	return decodeSeedJob(jobID, data), true, nil
}

// Start launches concurrency consumers that run until ctx is done.
func (q *RedisSeedQueue) Start(ctx context.Context, concurrency int, handler SeedHandler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisSeedQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		// BUSYGROUP means another instance created it already; other
		// failures surface on the first read.
		_ = q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	})
}

func (q *RedisSeedQueue) consumeLoop(ctx context.Context, consumer string, handler SeedHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisSeedQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisSeedQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler SeedHandler) {
	jobID, _ := msg.Values["job_id"].(string)
	rawSeller, _ := msg.Values["seller_id"].(string)
	sellerID, err := strconv.ParseInt(rawSeller, 10, 64)
	if jobID == "" || err != nil || sellerID <= 0 {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, jobID, sellerID)
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	inserted, err := handler(ctx, job)
	if err == nil {
		_ = q.markDone(ctx, jobID, inserted)
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if job.Attempts >= q.maxRetries {
		_ = q.markFailed(ctx, jobID, err.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	}
	_ = q.markQueued(ctx, jobID, err.Error())
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	_ = q.requeueAndAck(ctx, msg.ID, jobID, sellerID)
}

func (q *RedisSeedQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

// requeueAndAck re-publishes a failed job and acknowledges the original
// message atomically, so a failure leaves the original pending.
func (q *RedisSeedQueue) requeueAndAck(ctx context.Context, msgID, jobID string, sellerID int64) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: streamValues(jobID, sellerID),
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisSeedQueue) markProcessing(ctx context.Context, jobID string, sellerID int64) (SeedJob, error) {
	job, found, err := q.GetJob(ctx, jobID)
	if err != nil {
		return SeedJob{}, err
	}
	if !found {
		job = SeedJob{ID: jobID}
	}
	job.SellerID = sellerID
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return SeedJob{}, err
	}
	return job, nil
}

func (q *RedisSeedQueue) markQueued(ctx context.Context, jobID, errMsg string) error {
	return q.updateStatus(ctx, jobID, func(job *SeedJob) {
		job.Status = StatusQueued
		job.ErrorMessage = errMsg
	})
}

func (q *RedisSeedQueue) markDone(ctx context.Context, jobID string, inserted int) error {
	return q.updateStatus(ctx, jobID, func(job *SeedJob) {
		job.Status = StatusDone
		job.Inserted = inserted
		job.ErrorMessage = ""
	})
}

func (q *RedisSeedQueue) markFailed(ctx context.Context, jobID, errMsg string) error {
	return q.updateStatus(ctx, jobID, func(job *SeedJob) {
		job.Status = StatusFailed
		job.ErrorMessage = errMsg
	})
}

func (q *RedisSeedQueue) updateStatus(ctx context.Context, jobID string, mutate func(*SeedJob)) error {
	job, _, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	mutate(&job)
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisSeedQueue) writeStatus(ctx context.Context, job SeedJob) error {
	key := q.jobKey(job.ID)
	payload := map[string]any{
		"id":        job.ID,
		"sellerId":  strconv.FormatInt(job.SellerID, 10),
		"status":    job.Status,
		"inserted":  strconv.Itoa(job.Inserted),
		"error":     job.ErrorMessage,
		"attempts":  strconv.Itoa(job.Attempts),
		"createdAt": job.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

func (q *RedisSeedQueue) jobKey(jobID string) string {
	return fmt.Sprintf("job:%s:%s", q.stream, jobID)
}

func streamValues(jobID string, sellerID int64) map[string]any {
	return map[string]any{
		"job_id":    jobID,
		"seller_id": strconv.FormatInt(sellerID, 10),
	}
}

func decodeSeedJob(jobID string, data map[string]string) SeedJob {
	job := SeedJob{ID: jobID}
	if v := data["sellerId"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.SellerID = n
		}
	}
	job.Status = data["status"]
	job.ErrorMessage = data["error"]
	if v := data["inserted"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Inserted = n
		}
	}
	if v := data["attempts"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v := data["createdAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.CreatedAt = t
		}
	}
	if v := data["updatedAt"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			job.UpdatedAt = t
		}
	}
	return job
}
