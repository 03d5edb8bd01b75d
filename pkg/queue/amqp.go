package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
)

// declareAMQPQueue declares the durable queue, wiring a dead-letter queue
// through the default exchange when one is configured.
func declareAMQPQueue(ch *amqp.Channel, cfg Config) error {
	var args amqp.Table
	if cfg.DeadLetter != "" {
		if _, err := ch.QueueDeclare(cfg.DeadLetter, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %s: %w", cfg.DeadLetter, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": cfg.DeadLetter,
		}
	}

	if _, err := ch.QueueDeclare(cfg.Name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Name, err)
	}
	return nil
}

// AMQPPublisher publishes persistent messages with publisher confirms over
// one long-lived channel. The connection is dialled lazily and re-dialled
// after a failure, so a broker outage costs individual publishes, not the
// process.
type AMQPPublisher struct {
	cfg Config

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher creates a publisher. It does not dial.
func NewAMQPPublisher(cfg Config) *AMQPPublisher {
	return &AMQPPublisher{cfg: cfg}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.DialConfig(p.cfg.AMQP.URL, amqp.Config{
			Heartbeat: 10 * time.Second,
			Dial:      amqp.DefaultDial(5 * time.Second),
		})
		if err != nil {
			return nil, chaterr.New(chaterr.KindBrokerConnection, "amqp dial", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, chaterr.New(chaterr.KindBrokerConnection, "amqp channel", err)
	}
	if err := declareAMQPQueue(ch, p.cfg); err != nil {
		ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	p.ch = ch
	return ch, nil
}

// drop discards a channel that failed so the next publish starts fresh.
func (p *AMQPPublisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.ch.Close()
		p.ch = nil
	}
}

// Publish enqueues msg and waits for the broker confirm.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", p.cfg.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
	if err != nil {
		p.drop(ch)
		return fmt.Errorf("amqp publish: %w", err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("amqp confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		if err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}

// AMQPConsumer consumes with manual acknowledgement and a prefetch of one.
type AMQPConsumer struct {
	cfg  Config
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPConsumer dials the broker and declares the queue.
func NewAMQPConsumer(cfg Config) (*AMQPConsumer, error) {
	conn, err := amqp.DialConfig(cfg.AMQP.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Dial:      amqp.DefaultDial(5 * time.Second),
	})
	if err != nil {
		return nil, chaterr.New(chaterr.KindBrokerConnection, "amqp dial", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, chaterr.New(chaterr.KindBrokerConnection, "amqp channel", err)
	}

	if err := declareAMQPQueue(ch, cfg); err != nil {
		conn.Close()
		return nil, chaterr.New(chaterr.KindBrokerConnection, "amqp declare", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, chaterr.New(chaterr.KindBrokerConnection, "amqp qos", err)
	}

	return &AMQPConsumer{cfg: cfg, conn: conn, ch: ch}, nil
}

// Consume implements Consumer.
func (c *AMQPConsumer) Consume(ctx context.Context, h Handler) error {
	deliveries, err := c.ch.Consume(c.cfg.Name, c.cfg.AMQP.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return chaterr.New(chaterr.KindBrokerConnection, "amqp consume", err)
	}
	closed := c.conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil

		case amqpErr := <-closed:
			if amqpErr == nil {
				return chaterr.New(chaterr.KindBrokerConnection, "amqp consume", amqp.ErrClosed)
			}
			return chaterr.New(chaterr.KindBrokerConnection, "amqp consume", amqpErr)

		case d, ok := <-deliveries:
			if !ok {
				return chaterr.New(chaterr.KindBrokerConnection, "amqp consume", errors.New("delivery channel closed"))
			}
			if err := c.settle(d, h(ctx, d.Body)); err != nil {
				return chaterr.New(chaterr.KindBrokerConnection, "amqp settle", err)
			}
		}
	}
}

func (c *AMQPConsumer) settle(d amqp.Delivery, outcome Outcome) error {
	switch outcome {
	case Requeue:
		return d.Nack(false, true)
	case Reject:
		if c.cfg.DeadLetter != "" {
			return d.Nack(false, false)
		}
		return d.Ack(false)
	default:
		return d.Ack(false)
	}
}

// Close closes the channel and connection.
func (c *AMQPConsumer) Close() error {
	c.ch.Close()
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
