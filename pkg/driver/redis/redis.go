package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/payvide/payworker/pkg/config"
	"github.com/payvide/payworker/pkg/queue"
)

const blockTimeout = time.Second

// RedisDriver implements queue.Driver on per-tier lists plus a
// scheduled sorted set for delayed jobs.
type RedisDriver struct {
	Client *goredis.Client
}

// NewRedisDriver creates a new Redis driver instance
func NewRedisDriver(cfg config.RedisConfig) *RedisDriver {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisDriver{Client: rdb}
}

// NewRedisDriverWithClient wraps an existing client (shared with the
// cache store and scheduler locks).
func NewRedisDriverWithClient(client *goredis.Client) *RedisDriver {
	return &RedisDriver{Client: client}
}

func tierKey(queueName string, p queue.Priority) string {
	return fmt.Sprintf("queues:%s:%s", queueName, p)
}

func scheduledKey(queueName string) string {
	return fmt.Sprintf("queues:%s:scheduled", queueName)
}

// Push appends the job to its tier list, or parks it in the scheduled
// set until the delay elapses.
func (r *RedisDriver) Push(ctx context.Context, queueName string, body []byte, priority queue.Priority, delay time.Duration) error {
	if !priority.Valid() {
		priority = queue.PriorityMedium
	}
	if delay > 0 {
		return r.Client.ZAdd(ctx, scheduledKey(queueName), goredis.Z{
			Score:  float64(time.Now().Add(delay).UnixMilli()),
			Member: string(body),
		}).Err()
	}
	return r.Client.RPush(ctx, tierKey(queueName, priority), body).Err()
}

// Pop promotes due scheduled jobs, then blocks on the tier lists.
// BLPOP scans its keys in order, which gives urgent-first semantics.
func (r *RedisDriver) Pop(ctx context.Context, queueName string) (*queue.Job, error) {
	keys := make([]string, 0, 4)
	for _, tier := range queue.Tiers() {
		keys = append(keys, tierKey(queueName, tier))
	}

	for {
		if err := r.promoteScheduled(ctx, queueName); err != nil {
			return nil, err
		}

		result, err := r.Client.BLPop(ctx, blockTimeout, keys...).Result()
		if err == goredis.Nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		if len(result) < 2 {
			continue
		}
		return &queue.Job{Body: []byte(result[1])}, nil
	}
}

// Ack is a no-op: BLPOP already removed the job.
func (r *RedisDriver) Ack(ctx context.Context, job *queue.Job) error { return nil }

// promoteScheduled moves due delayed jobs into their tier lists.
func (r *RedisDriver) promoteScheduled(ctx context.Context, queueName string) error {
	key := scheduledKey(queueName)
	members, err := r.Client.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", time.Now().UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil || len(members) == 0 {
		return err
	}

	pipe := r.Client.TxPipeline()
	for _, body := range members {
		var env queue.Envelope
		priority := queue.PriorityMedium
		if err := json.Unmarshal([]byte(body), &env); err == nil && env.Priority.Valid() {
			priority = env.Priority
		}
		pipe.ZRem(ctx, key, body)
		pipe.RPush(ctx, tierKey(queueName, priority), body)
	}
	_, err = pipe.Exec(ctx)
	return err
}
