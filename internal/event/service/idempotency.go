package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReserver claims transaction IDs with SETNX so two nodes racing on the
// same submission agree on a single winner. Reservations expire; the action
// log is what makes idempotency durable.
type RedisReserver struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisReserver(client redis.Cmdable, ttl time.Duration) *RedisReserver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisReserver{client: client, ttl: ttl}
}

func (r *RedisReserver) Reserve(ctx context.Context, transactionID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, "civreg:txn:"+transactionID, "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve transaction %s: %w", transactionID, err)
	}
	return ok, nil
}
