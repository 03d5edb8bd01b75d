// Package consumer moves relay records from the durable queue into the
// message store, one record at a time.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
)

// Dialer opens a queue consumer. queue.NewConsumer bound to a config is the
// usual implementation.
type Dialer func() (queue.Consumer, error)

type Config struct {
	ReconnectDelay time.Duration
	RetryDelay     time.Duration
	InsertTimeout  time.Duration
}

// Consumer consumes relay records and persists the user messages among them.
type Consumer struct {
	dial  Dialer
	store repository.MessageStore
	cfg   Config
	now   func() time.Time
}

// NewConsumer creates a new consumer.
func NewConsumer(dial Dialer, store repository.MessageStore, cfg Config) *Consumer {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = 10 * time.Second
	}
	return &Consumer{
		dial:  dial,
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Run consumes until ctx is cancelled. Losing the broker, or failing to
// reach it at all, is retried forever after a fixed delay.
func (c *Consumer) Run(ctx context.Context) error {
	l := log.Ctx(ctx)

	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			l.Info().Msg("consumer stopping")
			return nil
		}
		if err == nil {
			err = chaterr.New(chaterr.KindBrokerConnection, "consume", errors.New("consumer returned unexpectedly"))
		}

		l.Error().Err(err).
			Str(log.FieldErrorKind, string(chaterr.KindOf(err))).
			Dur("retry_in", c.cfg.ReconnectDelay).
			Msg("queue connection lost, reconnecting")

		select {
		case <-ctx.Done():
			l.Info().Msg("consumer stopping")
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	qc, err := c.dial()
	if err != nil {
		if chaterr.KindOf(err) == chaterr.KindUnknown {
			err = chaterr.New(chaterr.KindBrokerConnection, "dial", err)
		}
		return err
	}
	defer qc.Close()

	l := log.Ctx(ctx)
	l.Info().Msg("consumer connected")
	return qc.Consume(ctx, c.Handle)
}

// Handle settles one record:
//   - undecodable or invalid records are rejected as poison
//   - system records are acked without a write
//   - user messages are acked only after the insert commits
//   - a failed insert is requeued after RetryDelay
func (c *Consumer) Handle(ctx context.Context, body []byte) queue.Outcome {
	l := log.Ctx(ctx)

	rec, err := domain.DecodeRecord(body)
	if err != nil {
		l.Warn().Err(err).Int("bytes", len(body)).Msg("dropping undecodable record")
		return queue.Reject
	}

	if rec.IsSystem() {
		l.Debug().Str(log.FieldRoomID, rec.RoomID).Str(log.FieldEventKind, rec.Kind).Msg("system record skipped")
		return queue.Ack
	}

	if err := rec.Validate(); err != nil {
		l.Warn().Err(err).Str(log.FieldMessageID, rec.MessageID).Msg("dropping invalid record")
		return queue.Reject
	}

	msg := rec.ToMessage(c.now())

	insertCtx, cancel := context.WithTimeout(ctx, c.cfg.InsertTimeout)
	recordID, err := c.store.InsertMessage(insertCtx, msg)
	cancel()
	if err != nil {
		err = chaterr.New(chaterr.KindPersistence, "insert message", err)
		l.Error().Err(err).
			Str(log.FieldErrorKind, string(chaterr.KindPersistence)).
			Str(log.FieldMessageID, msg.MessageID).
			Str(log.FieldRoomID, msg.RoomID).
			Msg("persist failed, record left unacknowledged")

		if c.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RetryDelay):
			}
		}
		return queue.Requeue
	}

	l.Debug().
		Str(log.FieldMessageID, msg.MessageID).
		Str(log.FieldRoomID, msg.RoomID).
		Str("record_id", recordID).
		Msg("message persisted")
	return queue.Ack
}
