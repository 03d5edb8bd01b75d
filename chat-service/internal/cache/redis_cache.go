package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisMembershipCache struct {
	client *redis.Client
	prefix string
}

func NewRedisMembershipCache(cfg config.RedisConfig, prefix string) (*RedisMembershipCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMembershipCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *RedisMembershipCache) BuildKey(roomID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, roomID, userID)
}

func (c *RedisMembershipCache) Get(ctx context.Context, key string) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrCacheMiss
		}
		return false, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val == "1", nil
}

func (c *RedisMembershipCache) Set(ctx context.Context, key string, member bool, ttl time.Duration) error {
	val := "0"
	if member {
		val = "1"
	}
	if err := c.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisMembershipCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	return nil
}

func (c *RedisMembershipCache) Close() error {
	return c.client.Close()
}
