package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
)

// recordingConn stores every payload it is sent.
type recordingConn struct {
	id    string
	mu    sync.Mutex
	got   [][]byte
	fail  error
	block bool
}

func newConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(ctx context.Context, payload []byte) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, payload)
	return nil
}

func (c *recordingConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.got))
	for i, p := range c.got {
		out[i] = string(p)
	}
	return out
}

func TestAttachIsIdempotent(t *testing.T) {
	r := NewRegistry(time.Second)
	c := newConn("a")

	if !r.Attach("room", c) {
		t.Fatal("first Attach returned false")
	}
	if r.Attach("room", c) {
		t.Fatal("second Attach returned true")
	}
	if n := r.Members("room"); n != 1 {
		t.Fatalf("Members = %d, want 1", n)
	}

	res := r.Broadcast(context.Background(), "room", []byte("x"))
	if res.Delivered != 1 || len(c.received()) != 1 {
		t.Fatalf("duplicate attach delivered twice: %+v", res)
	}
}

func TestDetachPrunesEmptyRoom(t *testing.T) {
	r := NewRegistry(time.Second)
	a, b := newConn("a"), newConn("b")
	r.Attach("room", a)
	r.Attach("room", b)

	if r.Detach("room", newConn("ghost")) {
		t.Fatal("Detach of absent conn returned true")
	}
	if r.Detach("other", a) {
		t.Fatal("Detach from unknown room returned true")
	}

	r.Detach("room", a)
	if r.Rooms() != 1 {
		t.Fatalf("Rooms = %d, want 1", r.Rooms())
	}
	r.Detach("room", b)
	if r.Rooms() != 0 {
		t.Fatalf("Rooms = %d, want 0 after last detach", r.Rooms())
	}

	// A pruned room comes back on the next attach.
	if !r.Attach("room", a) || r.Members("room") != 1 {
		t.Fatal("re-attach after prune failed")
	}
}

func TestBroadcastReachesEveryMember(t *testing.T) {
	r := NewRegistry(time.Second)
	conns := []*recordingConn{newConn("a"), newConn("b"), newConn("c")}
	for _, c := range conns {
		r.Attach("room", c)
	}
	outsider := newConn("z")
	r.Attach("elsewhere", outsider)

	res := r.Broadcast(context.Background(), "room", []byte("hello"))
	if res.Delivered != 3 || len(res.Failed) != 0 {
		t.Fatalf("result = %+v", res)
	}
	for _, c := range conns {
		if got := c.received(); len(got) != 1 || got[0] != "hello" {
			t.Errorf("%s received %v", c.id, got)
		}
	}
	if got := outsider.received(); len(got) != 0 {
		t.Errorf("other room received %v", got)
	}

	if res := r.Broadcast(context.Background(), "empty", []byte("x")); res.Delivered != 0 {
		t.Errorf("broadcast to unknown room delivered %d", res.Delivered)
	}
}

func TestBroadcastDetachesFailedConnections(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	good := newConn("good")
	broken := newConn("broken")
	broken.fail = errors.New("write: broken pipe")
	slow := newConn("slow")
	slow.block = true

	r.Attach("room", good)
	r.Attach("room", broken)
	r.Attach("room", slow)

	start := time.Now()
	res := r.Broadcast(context.Background(), "room", []byte("m1"))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("broadcast took %v, send timeout not applied", elapsed)
	}
	if res.Delivered != 1 || len(res.Failed) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if n := r.Members("room"); n != 1 {
		t.Fatalf("Members = %d, want only the healthy conn", n)
	}

	r.Broadcast(context.Background(), "room", []byte("m2"))
	if got := good.received(); len(got) != 2 || got[1] != "m2" {
		t.Fatalf("healthy conn received %v", got)
	}
}

func TestZeroSendTimeoutKeepsHealthyClients(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		r := NewRegistry(timeout)
		if r.sendTimeout != DefaultSendTimeout {
			t.Fatalf("NewRegistry(%v) timeout = %v", timeout, r.sendTimeout)
		}

		// A client with room in its buffer must always accept the frame.
		c := NewClient("c1", nil, config.WebSocketConfig{SendBuffer: 8})
		r.Attach("room", c)
		for i := 0; i < 50; i++ {
			res := r.Broadcast(context.Background(), "room", []byte("m"))
			if res.Delivered != 1 || len(res.Failed) != 0 {
				t.Fatalf("timeout %v, broadcast %d: %+v", timeout, i, res)
			}
			<-c.send
		}
		if n := r.Members("room"); n != 1 {
			t.Fatalf("timeout %v: Members = %d, want 1", timeout, n)
		}
	}
}

func TestBroadcastPreservesOrderPerRoom(t *testing.T) {
	r := NewRegistry(time.Second)
	conns := make([]*recordingConn, 5)
	for i := range conns {
		conns[i] = newConn(fmt.Sprintf("c%d", i))
		r.Attach("room", conns[i])
	}

	const n = 50
	for i := 0; i < n; i++ {
		r.Broadcast(context.Background(), "room", []byte(fmt.Sprintf("%03d", i)))
	}

	for _, c := range conns {
		got := c.received()
		if len(got) != n {
			t.Fatalf("%s received %d messages, want %d", c.id, len(got), n)
		}
		for i, m := range got {
			if m != fmt.Sprintf("%03d", i) {
				t.Fatalf("%s message %d = %s", c.id, i, m)
			}
		}
	}
}

func TestConcurrentAttachDetachBroadcast(t *testing.T) {
	r := NewRegistry(100 * time.Millisecond)
	stable := newConn("stable")
	r.Attach("room", stable)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c := newConn(fmt.Sprintf("w%d-%d", w, i))
				r.Attach("room", c)
				r.Broadcast(context.Background(), "room", []byte("x"))
				r.Detach("room", c)

				other := fmt.Sprintf("room-%d", w)
				r.Attach(other, c)
				r.Detach(other, c)
			}
		}(w)
	}
	wg.Wait()

	if n := r.Members("room"); n != 1 {
		t.Fatalf("Members = %d, want 1", n)
	}
	if r.Rooms() != 1 {
		t.Fatalf("Rooms = %d, want 1", r.Rooms())
	}
	if got := len(stable.received()); got != 800 {
		t.Fatalf("stable conn received %d, want 800", got)
	}
}
