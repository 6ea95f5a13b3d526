// Package queue delivers trend ids to workers with at-most-one active lease per id.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trendforge/importer/internal/database"
)

// Delivery is a claimed queue entry. Token identifies the lease; Ack and
// Release are ignored when the lease has since been taken over.
type Delivery struct {
	TrendID  int64
	Attempts int
	Token    string
}

// Queue is a delayed work queue of trend ids.
type Queue interface {
	Enqueue(ctx context.Context, trendID int64) error
	// Claim leases the next visible entry for the given duration.
	// It returns nil when nothing is ready.
	Claim(ctx context.Context, lease time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Release(ctx context.Context, d *Delivery, delay time.Duration) error
	Purge(ctx context.Context) error
	Len(ctx context.Context) (int64, error)
}

// Config selects and configures a queue backend.
type Config struct {
	Backend       string // "database" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// New creates the configured queue backend.
func New(cfg Config, db *database.DB) (Queue, error) {
	switch cfg.Backend {
	case "", "database":
		if db == nil {
			return nil, fmt.Errorf("database queue requires a database connection")
		}
		return NewDBQueue(db), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisQueue(rdb, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.Backend)
	}
}
