package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOutbox queues notifications on a redis list so deliveries survive
// process restarts and can be drained by any node.
type RedisOutbox struct {
	client redis.Cmdable
	key    string
}

func NewRedisOutbox(client redis.Cmdable, key string) *RedisOutbox {
	return &RedisOutbox{client: client, key: key}
}

func (o *RedisOutbox) Enqueue(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := o.client.LPush(ctx, o.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (o *RedisOutbox) Dequeue(ctx context.Context) (Notification, error) {
	// BRPOP with a short timeout so context cancellation is observed
	// between polls.
	for {
		res, err := o.client.BRPop(ctx, time.Second, o.key).Result()
		if err == redis.Nil {
			if ctx.Err() != nil {
				return Notification{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			return Notification{}, fmt.Errorf("dequeue notification: %w", err)
		}

		var n Notification
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			return Notification{}, fmt.Errorf("unmarshal notification: %w", err)
		}
		return n, nil
	}
}
