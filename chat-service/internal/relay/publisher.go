// Package relay hands accepted chat events to the durable queue without
// ever holding up the live delivery path.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
)

var (
	ErrBufferFull = errors.New("relay buffer full")
	ErrClosed     = errors.New("relay closed")
)

type Config struct {
	Workers             int
	BufferSize          int
	PublishTimeout      time.Duration
	PublishSystemEvents bool
}

// Publisher is a bounded worker pool in front of a queue.Publisher.
type Publisher struct {
	queue queue.Publisher
	cfg   Config
	jobs  chan *domain.ChatEvent
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(q queue.Publisher, cfg Config) *Publisher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	p := &Publisher{
		queue: q,
		cfg:   cfg,
		jobs:  make(chan *domain.ChatEvent, cfg.BufferSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Publish queues ev for the workers and returns at once. It reports whether
// the event was taken; a dropped event is logged and otherwise ignored.
func (p *Publisher) Publish(ev *domain.ChatEvent) bool {
	if ev.Kind.IsSystem() && !p.cfg.PublishSystemEvents {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logFailure(ev, chaterr.New(chaterr.KindRelayPublish, "enqueue", ErrClosed))
		return false
	}

	select {
	case p.jobs <- ev:
		return true
	default:
		p.logFailure(ev, chaterr.New(chaterr.KindRelayPublish, "enqueue", ErrBufferFull))
		return false
	}
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for ev := range p.jobs {
		p.publish(ev)
	}
}

func (p *Publisher) publish(ev *domain.ChatEvent) {
	body, err := json.Marshal(ev.RelayRecord())
	if err != nil {
		p.logFailure(ev, chaterr.New(chaterr.KindRelayPublish, "encode", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()

	msg := queue.Message{ID: ev.MessageID, Key: ev.RoomID, Body: body}
	if err := p.queue.Publish(ctx, msg); err != nil {
		p.logFailure(ev, chaterr.New(chaterr.KindRelayPublish, "publish", err))
		return
	}

	l := log.L()
	l.Debug().
		Str(log.FieldMessageID, ev.MessageID).
		Str(log.FieldRoomID, ev.RoomID).
		Msg("event relayed")
}

func (p *Publisher) logFailure(ev *domain.ChatEvent, err error) {
	l := log.L()
	l.Error().Err(err).
		Str(log.FieldErrorKind, string(chaterr.KindOf(err))).
		Str(log.FieldMessageID, ev.MessageID).
		Str(log.FieldRoomID, ev.RoomID).
		Str(log.FieldEventKind, string(ev.Kind)).
		Msg("event not relayed, durability lost")
}

// Close stops intake and waits for queued events to be published, or for
// ctx to end. The underlying queue publisher is closed afterwards.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if cerr := p.queue.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
