package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/queue"
	"github.com/weiawesome/wes-io-chat/pkg/queue/queuetest"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
	"github.com/weiawesome/wes-io-chat/pkg/schema/schematest"
)

func record(t *testing.T, rec domain.RelayRecord) queue.Message {
	t.Helper()
	body, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return queue.Message{ID: rec.MessageID, Key: rec.RoomID, Body: body}
}

func userRecord(id, content string) domain.RelayRecord {
	return domain.RelayRecord{
		MessageID: id,
		Kind:      domain.KindUserMessage,
		RoomID:    "r-1",
		UserID:    "u-1",
		Username:  "alice",
		Content:   content,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func start(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func staticDialer(q *queuetest.Queue) Dialer {
	return func() (queue.Consumer, error) { return q, nil }
}

func TestAckProtocol(t *testing.T) {
	db := schematest.Open(t)
	q := queuetest.New()
	c := NewConsumer(staticDialer(q), repository.NewGormMessageStore(db), Config{ReconnectDelay: 10 * time.Millisecond})

	q.Push(record(t, userRecord("m-1", "hello")))
	q.Push(record(t, domain.RelayRecord{Kind: domain.KindSystemJoin, Type: domain.TypeSystem, RoomID: "r-1", Content: "alice joined"}))
	q.Push(queue.Message{ID: "poison", Body: []byte("{not json")})
	q.Push(record(t, domain.RelayRecord{MessageID: "m-2", RoomID: "r-1", Content: "no sender"}))
	start(t, c)

	waitFor(t, func() bool { return len(q.Acked())+len(q.Rejected()) == 4 })

	if n := len(q.Acked()); n != 2 {
		t.Fatalf("acked %d, want user message and system record", n)
	}
	rejected := q.Rejected()
	if len(rejected) != 2 || rejected[0].ID != "poison" || rejected[1].ID != "m-2" {
		t.Fatalf("rejected %+v", rejected)
	}

	var rows []schema.MessageModel
	db.Find(&rows)
	if len(rows) != 1 || rows[0].MessageID != "m-1" || rows[0].Content != "hello" {
		t.Fatalf("stored %+v", rows)
	}
}

func TestRedeliveryIsStoredOnce(t *testing.T) {
	db := schematest.Open(t)
	q := queuetest.New()
	c := NewConsumer(staticDialer(q), repository.NewGormMessageStore(db), Config{})

	q.Push(record(t, userRecord("m-1", "hello")))
	q.Push(record(t, userRecord("m-1", "hello")))
	noID := userRecord("", "no id")
	q.Push(record(t, noID))
	q.Push(record(t, noID))
	start(t, c)

	waitFor(t, func() bool { return len(q.Acked()) == 4 })

	var count int64
	db.Model(&schema.MessageModel{}).Count(&count)
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}
}

// flakyStore fails the first n inserts.
type flakyStore struct {
	failures atomic.Int32
	mu       sync.Mutex
	stored   []string
}

func (s *flakyStore) InsertMessage(_ context.Context, msg *domain.PersistedMessage) (string, error) {
	if s.failures.Add(-1) >= 0 {
		return "", errors.New("connection reset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = append(s.stored, msg.MessageID)
	return msg.MessageID, nil
}

func TestFailedInsertIsRequeued(t *testing.T) {
	store := &flakyStore{}
	store.failures.Store(3)
	q := queuetest.New()
	c := NewConsumer(staticDialer(q), store, Config{RetryDelay: time.Millisecond})

	q.Push(record(t, userRecord("m-1", "first")))
	q.Push(record(t, userRecord("m-2", "second")))
	start(t, c)

	waitFor(t, func() bool { return len(q.Acked()) == 2 })

	if q.Requeues() != 3 {
		t.Fatalf("requeues = %d, want 3", q.Requeues())
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.stored) != 2 || store.stored[0] != "m-1" || store.stored[1] != "m-2" {
		t.Fatalf("stored %v, want m-1 then m-2", store.stored)
	}
}

func TestHandleOutcomes(t *testing.T) {
	store := &flakyStore{}
	c := NewConsumer(nil, store, Config{})
	ctx := context.Background()

	user, _ := json.Marshal(userRecord("m-1", "hi"))
	system, _ := json.Marshal(domain.RelayRecord{Kind: domain.KindSystemLeave, RoomID: "r-1", Content: "alice left"})

	tests := []struct {
		name string
		body []byte
		want queue.Outcome
	}{
		{"user message", user, queue.Ack},
		{"system record", system, queue.Ack},
		{"garbage", []byte("\x00\x01"), queue.Reject},
		{"empty object", []byte("{}"), queue.Reject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Handle(ctx, tt.body); got != tt.want {
				t.Fatalf("Handle = %s, want %s", got, tt.want)
			}
		})
	}
	if len(store.stored) != 1 {
		t.Fatalf("stored %v", store.stored)
	}
}

func TestRunReconnectsAfterBrokerLoss(t *testing.T) {
	db := schematest.Open(t)
	q := queuetest.New()

	var dials atomic.Int32
	dial := func() (queue.Consumer, error) {
		if dials.Add(1) <= 2 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return q, nil
	}
	c := NewConsumer(dial, repository.NewGormMessageStore(db), Config{ReconnectDelay: 10 * time.Millisecond})
	start(t, c)

	q.Push(record(t, userRecord("m-1", "before outage")))
	waitFor(t, func() bool { return len(q.Acked()) == 1 })

	q.Disconnect()
	q.Push(record(t, userRecord("m-2", "after outage")))
	waitFor(t, func() bool { return len(q.Acked()) == 2 })
	waitFor(t, func() bool { return dials.Load() >= 4 })
}

func TestRunStopsOnCancel(t *testing.T) {
	dial := func() (queue.Consumer, error) { return nil, errors.New("unreachable") }
	c := NewConsumer(dial, &flakyStore{}, Config{ReconnectDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run ignored cancellation during reconnect delay")
	}
}
