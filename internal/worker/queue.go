package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"life-reality/internal/optimize"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueKey     = "queue:optimize"
	jobKeyPrefix = "optimize:job:"

	// DefaultJobTTL is how long a finished job stays readable.
	DefaultJobTTL = 24 * time.Hour
)

// ErrEmpty is returned by Pop when no job arrived within the poll window.
var ErrEmpty = errors.New("queue empty")

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one optimization request and, once processed, its outcome.
type Job struct {
	ID         uuid.UUID        `json:"id"`
	ArticleID  string           `json:"articleId,omitempty"`
	Status     Status           `json:"status"`
	Request    optimize.Request `json:"request"`
	Result     *optimize.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// Queue keeps job records as JSON strings and pending ids in a Redis list.
type Queue struct {
	rdb  *redis.Client
	ttl  time.Duration
	poll time.Duration
}

func NewQueue(rdb *redis.Client, ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &Queue{rdb: rdb, ttl: ttl, poll: time.Second}
}

// Enqueue records a pending job and pushes it onto the queue.
func (q *Queue) Enqueue(ctx context.Context, req optimize.Request, articleID string) (Job, error) {
	job := Job{
		ID:        uuid.New(),
		ArticleID: articleID,
		Status:    StatusPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID.String(), data, q.ttl)
	pipe.LPush(ctx, queueKey, job.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Pop blocks for up to one poll window waiting for the next job id.
func (q *Queue) Pop(ctx context.Context) (uuid.UUID, error) {
	res, err := q.rdb.BRPop(ctx, q.poll, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrEmpty
	}
	if err != nil {
		return uuid.Nil, err
	}
	// BRPop returns [key, value]
	id, err := uuid.Parse(res[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad job id %q: %w", res[1], err)
	}
	return id, nil
}

func (q *Queue) Save(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.rdb.Set(ctx, jobKeyPrefix+job.ID.String(), data, q.ttl).Err()
}

// Get returns the job record, or false once it has expired or never existed.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (Job, bool, error) {
	data, err := q.rdb.Get(ctx, jobKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, false, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, true, nil
}
