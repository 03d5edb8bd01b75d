package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
)

const (
	fieldBody = "body"
	fieldKey  = "key"
	fieldID   = "id"
)

func newRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, chaterr.New(chaterr.KindBrokerConnection, "redis ping", err)
	}
	return client, nil
}

func streamValues(msg Message) map[string]interface{} {
	return map[string]interface{}{
		fieldBody: msg.Body,
		fieldKey:  msg.Key,
		fieldID:   msg.ID,
	}
}

// RedisPublisher appends records to a Redis stream. Streams are persisted
// with the rest of the keyspace, so durability follows the server's AOF or
// RDB settings.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher connects to Redis.
func NewRedisPublisher(cfg Config) (*RedisPublisher, error) {
	client, err := newRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{client: client, stream: cfg.Name, maxLen: cfg.Redis.MaxLen}, nil
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: streamValues(msg),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// Close closes the client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisConsumer reads a stream through a consumer group, COUNT 1 at a time.
// Records that are not acknowledged stay in the group's pending list and are
// claimed again once they have been idle for ClaimMinIdle.
type RedisConsumer struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	deadLetter string
	block      time.Duration
	minIdle    time.Duration
}

// NewRedisConsumer connects and creates the consumer group if needed.
func NewRedisConsumer(cfg Config) (*RedisConsumer, error) {
	client, err := newRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.XGroupCreateMkStream(ctx, cfg.Name, cfg.Redis.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		client.Close()
		return nil, chaterr.New(chaterr.KindBrokerConnection, "redis xgroup create", err)
	}

	consumer := cfg.Redis.Consumer
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	block := cfg.Redis.Block
	if block <= 0 {
		block = 2 * time.Second
	}
	minIdle := cfg.Redis.ClaimMinIdle
	if minIdle <= 0 {
		minIdle = 30 * time.Second
	}

	return &RedisConsumer{
		client:     client,
		stream:     cfg.Name,
		group:      cfg.Redis.Group,
		consumer:   consumer,
		deadLetter: cfg.DeadLetter,
		block:      block,
		minIdle:    minIdle,
	}, nil
}

// Consume implements Consumer.
func (c *RedisConsumer) Consume(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return chaterr.New(chaterr.KindBrokerConnection, "redis read", err)
		}
		if msg == nil {
			continue
		}

		body, _ := msg.Values[fieldBody].(string)
		if err := c.settle(ctx, msg, h(ctx, []byte(body))); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return chaterr.New(chaterr.KindBrokerConnection, "redis settle", err)
		}
	}
}

// next prefers stale pending records over new ones so a requeued record is
// retried before the stream moves on.
func (c *RedisConsumer) next(ctx context.Context) (*redis.XMessage, error) {
	claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		return &claimed[0], nil
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    c.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	for _, s := range streams {
		if len(s.Messages) > 0 {
			return &s.Messages[0], nil
		}
	}
	return nil, nil
}

func (c *RedisConsumer) settle(ctx context.Context, msg *redis.XMessage, outcome Outcome) error {
	switch outcome {
	case Requeue:
		return nil
	case Reject:
		if c.deadLetter != "" {
			if err := c.client.XAdd(ctx, &redis.XAddArgs{
				Stream: c.deadLetter,
				Values: msg.Values,
			}).Err(); err != nil {
				return fmt.Errorf("dead-letter xadd: %w", err)
			}
		}
	}
	return c.client.XAck(ctx, c.stream, c.group, msg.ID).Err()
}

// Close closes the client.
func (c *RedisConsumer) Close() error {
	return c.client.Close()
}
