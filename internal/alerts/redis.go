package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis alert sink.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisNotifier pushes alerts onto a redis list for external consumers
// (dashboards, pagers) to drain.
type RedisNotifier struct {
	client *redis.Client
	key    string
}

// NewRedisNotifier creates the sink and verifies the connection.
func NewRedisNotifier(cfg RedisConfig) (*RedisNotifier, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisNotifier{client: client, key: cfg.Key}, nil
}

func (r *RedisNotifier) Notify(a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.RPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("push alert to redis: %w", err)
	}
	return nil
}

func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
