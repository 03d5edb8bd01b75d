// Package queuetest provides an in-process queue for tests. It honours the
// same outcome contract as the real drivers: requeued records are delivered
// again, acked and rejected records are gone.
package queuetest

import (
	"context"
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
)

// ErrDisconnected is returned by Consume after Disconnect.
var ErrDisconnected = errors.New("queuetest: disconnected")

// Queue is a Publisher and Consumer backed by a slice.
type Queue struct {
	mu        sync.Mutex
	ready     []queue.Message
	published []queue.Message
	acked     []queue.Message
	rejected  []queue.Message
	requeues  int

	publishErr error
	gate       chan struct{}
	notify     chan struct{}
	drop       chan struct{}
	closed     bool
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		drop:   make(chan struct{}),
	}
}

// FailPublish makes every Publish return err until called again with nil.
func (q *Queue) FailPublish(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.publishErr = err
}

// BlockPublish makes Publish wait until the returned release func is called
// or the publish context ends. It simulates an unreachable broker that hangs
// instead of refusing.
func (q *Queue) BlockPublish() (release func()) {
	gate := make(chan struct{})
	q.mu.Lock()
	q.gate = gate
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			if q.gate == gate {
				q.gate = nil
			}
			q.mu.Unlock()
			close(gate)
		})
	}
}

// Disconnect makes the running Consume call return a broker connection
// error, as if the broker went away. Records stay queued.
func (q *Queue) Disconnect() {
	q.mu.Lock()
	defer q.mu.Unlock()
	close(q.drop)
	q.drop = make(chan struct{})
}

// Publish implements queue.Publisher.
func (q *Queue) Publish(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	gate, err := q.gate, q.publishErr
	q.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	msg.Body = append([]byte(nil), msg.Body...)
	q.mu.Lock()
	q.published = append(q.published, msg)
	q.ready = append(q.ready, msg)
	q.mu.Unlock()
	q.wake()
	return nil
}

// Push enqueues msg without recording it as published. Tests use it to
// inject hand-made bodies.
func (q *Queue) Push(msg queue.Message) {
	q.mu.Lock()
	msg.Body = append([]byte(nil), msg.Body...)
	q.ready = append(q.ready, msg)
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Consume implements queue.Consumer. Records are handed out one at a time;
// the next is not delivered until the previous one is settled.
func (q *Queue) Consume(ctx context.Context, h queue.Handler) error {
	q.mu.Lock()
	drop := q.drop
	q.mu.Unlock()

	for {
		q.mu.Lock()
		var (
			msg queue.Message
			ok  bool
		)
		if len(q.ready) > 0 {
			msg, ok = q.ready[0], true
			q.ready = q.ready[1:]
		}
		q.mu.Unlock()

		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-drop:
				return chaterr.New(chaterr.KindBrokerConnection, "queuetest consume", ErrDisconnected)
			case <-q.notify:
				continue
			}
		}

		outcome := h(ctx, msg.Body)

		q.mu.Lock()
		switch outcome {
		case queue.Requeue:
			q.requeues++
			q.ready = append([]queue.Message{msg}, q.ready...)
		case queue.Reject:
			q.rejected = append(q.rejected, msg)
		default:
			q.acked = append(q.acked, msg)
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-drop:
			return chaterr.New(chaterr.KindBrokerConnection, "queuetest consume", ErrDisconnected)
		default:
		}
	}
}

// Close implements queue.Publisher and queue.Consumer.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Published returns every message accepted by Publish.
func (q *Queue) Published() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.published...)
}

// Acked returns the acknowledged messages in settle order.
func (q *Queue) Acked() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.acked...)
}

// Rejected returns the rejected messages.
func (q *Queue) Rejected() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Message(nil), q.rejected...)
}

// Pending returns the number of messages waiting for delivery.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// Requeues returns how many times a record was handed back.
func (q *Queue) Requeues() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.requeues
}
