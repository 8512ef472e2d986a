package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/httpserver"
)

// Pinger is the minimal interface for a dependency capable of Ping, such as
// the pgx pool or the Kafka publisher.
type Pinger interface{ Ping(ctx context.Context) error }

// RedisClient is the minimal interface for a Redis client needed for readiness.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// BuildReadinessChecks returns the db, redis and kafka checks. A nil kafka
// pinger means events are disabled and its check is skipped.
func BuildReadinessChecks(pool Pinger, rdb RedisClient, kafka Pinger) httpserver.Checks {
	checks := httpserver.Checks{
		DB: func(ctx context.Context) error {
			if pool == nil {
				return fmt.Errorf("db not configured")
			}
			return pool.Ping(ctx)
		},
		Redis: func(ctx context.Context) error {
			if rdb == nil {
				return fmt.Errorf("redis not configured")
			}
			return rdb.Ping(ctx).Err()
		},
	}
	if kafka != nil {
		checks.Kafka = kafka.Ping
	}
	return checks
}
