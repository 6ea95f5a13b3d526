package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisQueue schedules trend ids in a sorted set scored by the unix
// millisecond at which they become visible.
type RedisQueue struct {
	rdb         *redis.Client
	readyKey    string
	attemptsKey string
	tokensKey   string
	now         func() time.Time
}

// KEYS: ready, attempts, tokens. ARGV: now, visible_until, token.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
	return false
end
local id = ids[1]
redis.call('ZADD', KEYS[1], ARGV[2], id)
local attempts = redis.call('HINCRBY', KEYS[2], id, 1)
redis.call('HSET', KEYS[3], id, ARGV[3])
return {id, attempts}
`)

// KEYS: ready, attempts, tokens. ARGV: id, token.
var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
	return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
return 1
`)

// KEYS: ready, tokens. ARGV: id, token, visible_at.
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], ARGV[1]) ~= ARGV[2] then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return 1
`)

// NewRedisQueue creates a queue stored under the given key prefix.
func NewRedisQueue(rdb *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "trends:queue"
	}
	return &RedisQueue{
		rdb:         rdb,
		readyKey:    prefix + ":ready",
		attemptsKey: prefix + ":attempts",
		tokensKey:   prefix + ":tokens",
		now:         time.Now,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, trendID int64) error {
	err := q.rdb.ZAddNX(ctx, q.readyKey, redis.Z{
		Score:  float64(q.now().UnixMilli()),
		Member: strconv.FormatInt(trendID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue trend %d: %w", trendID, err)
	}
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, lease time.Duration) (*Delivery, error) {
	now := q.now()
	token := uuid.NewString()

	res, err := claimScript.Run(ctx, q.rdb,
		[]string{q.readyKey, q.attemptsKey, q.tokensKey},
		now.UnixMilli(), now.Add(lease).UnixMilli(), token,
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue item: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected claim reply: %v", res)
	}

	idStr, _ := res[0].(string)
	trendID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid trend id in queue: %q", idStr)
	}
	attempts, _ := res[1].(int64)

	return &Delivery{TrendID: trendID, Attempts: int(attempts), Token: token}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	n, err := ackScript.Run(ctx, q.rdb,
		[]string{q.readyKey, q.attemptsKey, q.tokensKey},
		strconv.FormatInt(d.TrendID, 10), d.Token,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to ack trend %d: %w", d.TrendID, err)
	}
	if n == 0 {
		log.Warn().Int64("trend_id", d.TrendID).Msg("Ack ignored, lease no longer held")
	}
	return nil
}

func (q *RedisQueue) Release(ctx context.Context, d *Delivery, delay time.Duration) error {
	n, err := releaseScript.Run(ctx, q.rdb,
		[]string{q.readyKey, q.tokensKey},
		strconv.FormatInt(d.TrendID, 10), d.Token, q.now().Add(delay).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to release trend %d: %w", d.TrendID, err)
	}
	if n == 0 {
		log.Warn().Int64("trend_id", d.TrendID).Msg("Release ignored, lease no longer held")
	}
	return nil
}

func (q *RedisQueue) Purge(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.readyKey, q.attemptsKey, q.tokensKey).Err(); err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	log.Info().Str("key", q.readyKey).Msg("Queue purged")
	return nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.readyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count queue items: %w", err)
	}
	return n, nil
}

// Close releases the redis connection pool.
func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
