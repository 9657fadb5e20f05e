package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDelayedKey = "jobs:delayed"
	promoteBatch      = 100
	jobSource         = "report-service"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, key string, data map[string]interface{}) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job Job, delay time.Duration) error
}

// popDue removes and returns up to ARGV[2] members whose score is <= ARGV[1].
var popDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
if #due > 0 then
  redis.call('ZREM', KEYS[1], unpack(due))
end
return due
`)

// Queue publishes ready jobs to Kafka and parks delayed jobs in a Redis sorted
// set scored by due time until the promoter moves them.
type Queue struct {
	redis     redis.Cmdable
	publisher Publisher
	key       string
}

func NewQueue(client redis.Cmdable, publisher Publisher, delayedKey string) *Queue {
	if delayedKey == "" {
		delayedKey = DefaultDelayedKey
	}
	return &Queue{redis: client, publisher: publisher, key: delayedKey}
}

func (q *Queue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
		job.EnqueuedAt = time.Now().UTC()
	}
	if delay <= 0 {
		return q.publish(ctx, job)
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	due := time.Now().Add(delay)
	if err := q.redis.ZAdd(ctx, q.key, redis.Z{Score: float64(due.UnixMilli()), Member: string(raw)}).Err(); err != nil {
		return fmt.Errorf("scheduling job: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_kind": job.Kind,
		"due_at":   due.UTC(),
	}).Debug("job delayed")
	return nil
}

func (q *Queue) publish(ctx context.Context, job Job) error {
	data, err := job.eventData()
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	return q.publisher.PublishEvent(ctx, string(job.Kind), jobSource, job.Key, data)
}

// PromoteDue publishes every delayed job that is due at now. A job whose
// publish fails is put back so the next run retries it.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	promoted := 0
	for {
		members, err := popDue.Run(ctx, q.redis, []string{q.key}, strconv.FormatInt(now.UnixMilli(), 10), promoteBatch).StringSlice()
		if err != nil {
			return promoted, fmt.Errorf("popping due jobs: %w", err)
		}

		for i, member := range members {
			var job Job
			if err := json.Unmarshal([]byte(member), &job); err != nil {
				logger.Log.WithError(err).Error("dropping undecodable delayed job")
				continue
			}
			if err := q.publish(ctx, job); err != nil {
				q.restore(ctx, now, members[i:])
				return promoted, fmt.Errorf("publishing job %s: %w", job.ID, err)
			}
			promoted++
		}

		if len(members) < promoteBatch {
			return promoted, nil
		}
	}
}

func (q *Queue) restore(ctx context.Context, now time.Time, members []string) {
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		zs = append(zs, redis.Z{Score: float64(now.UnixMilli()), Member: m})
	}
	if err := q.redis.ZAdd(ctx, q.key, zs...).Err(); err != nil {
		logger.Log.WithError(err).WithField("jobs", len(members)).Error("failed to restore delayed jobs")
	}
}

// RunPromoter calls PromoteDue every interval until ctx is cancelled.
func (q *Queue) RunPromoter(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			n, err := q.PromoteDue(ctx, now)
			if err != nil {
				logger.Log.WithError(err).Error("failed to promote delayed jobs")
				continue
			}
			if n > 0 {
				logger.Log.WithField("jobs", n).Info("delayed jobs promoted")
			}
		}
	}
}
