package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/cache"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
	"github.com/weiawesome/wes-io-chat/pkg/schema/schematest"
)

func TestJWTValidator(t *testing.T) {
	manager, err := jwt.NewManager("secret", "wes-io-chat", time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, _, err := manager.GenerateAccessToken("u-1", "alice", nil)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	v := NewJWTValidator(manager)

	id, err := v.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if id.ID != "u-1" || id.Name != "alice" {
		t.Fatalf("identity = %+v", id)
	}

	if _, err := v.Validate(context.Background(), "Bearer "+token); err != nil {
		t.Fatalf("Validate with Bearer prefix: %v", err)
	}

	other, _ := jwt.NewManager("other-secret", "wes-io-chat", time.Minute)
	forged, _, _ := other.GenerateAccessToken("u-1", "alice", nil)

	for name, cred := range map[string]string{
		"empty":   "",
		"garbage": "not-a-token",
		"forged":  forged,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Validate(context.Background(), cred); !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("err = %v, want ErrInvalidCredential", err)
			}
		})
	}
}

func TestGormMembershipGate(t *testing.T) {
	db := schematest.Open(t)
	if err := db.Create(&schema.RoomMemberModel{RoomID: "r-1", UserID: "u-1", Role: schema.RoleMember}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	gate := NewGormMembershipGate(db)

	tests := []struct {
		user, room string
		want       bool
	}{
		{"u-1", "r-1", true},
		{"u-2", "r-1", false},
		{"u-1", "r-2", false},
	}
	for _, tt := range tests {
		got, err := gate.IsMember(context.Background(), domain.Identity{ID: tt.user}, tt.room)
		if err != nil {
			t.Fatalf("IsMember: %v", err)
		}
		if got != tt.want {
			t.Errorf("IsMember(%s, %s) = %v, want %v", tt.user, tt.room, got, tt.want)
		}
	}
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]bool
	failGet bool
}

func newMemCache() *memCache { return &memCache{entries: map[string]bool{}} }

func (c *memCache) Get(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("redis down")
	}
	v, ok := c.entries[key]
	if !ok {
		return false, cache.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, member bool, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = member
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memCache) BuildKey(roomID, userID string) string { return roomID + ":" + userID }
func (c *memCache) Close() error                          { return nil }

type countingGate struct {
	calls  atomic.Int32
	member bool
	err    error
	delay  time.Duration
}

func (g *countingGate) IsMember(context.Context, domain.Identity, string) (bool, error) {
	g.calls.Add(1)
	time.Sleep(g.delay)
	return g.member, g.err
}

func TestCachedGateCachesPositiveAnswers(t *testing.T) {
	next := &countingGate{member: true}
	c := newMemCache()
	gate := NewCachedGate(next, c, time.Minute)
	id := domain.Identity{ID: "u-1"}

	for i := 0; i < 3; i++ {
		ok, err := gate.IsMember(context.Background(), id, "r-1")
		if err != nil || !ok {
			t.Fatalf("IsMember = %v, %v", ok, err)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("backing gate called %d times, want 1", n)
	}
}

func TestCachedGateDoesNotCacheNegatives(t *testing.T) {
	next := &countingGate{member: false}
	gate := NewCachedGate(next, newMemCache(), time.Minute)
	id := domain.Identity{ID: "u-1"}

	gate.IsMember(context.Background(), id, "r-1")
	next.member = true
	ok, err := gate.IsMember(context.Background(), id, "r-1")
	if err != nil || !ok {
		t.Fatalf("IsMember after join = %v, %v", ok, err)
	}
}

func TestCachedGateFallsThroughOnCacheFailure(t *testing.T) {
	next := &countingGate{member: true}
	c := newMemCache()
	c.failGet = true
	gate := NewCachedGate(next, c, time.Minute)

	ok, err := gate.IsMember(context.Background(), domain.Identity{ID: "u-1"}, "r-1")
	if err != nil || !ok {
		t.Fatalf("IsMember = %v, %v", ok, err)
	}

	next.err = errors.New("db down")
	c.failGet = false
	c.Delete(context.Background(), c.BuildKey("r-1", "u-1"))
	if _, err := gate.IsMember(context.Background(), domain.Identity{ID: "u-1"}, "r-1"); err == nil {
		t.Fatal("backing error swallowed")
	}
}

func TestCachedGateCollapsesConcurrentLookups(t *testing.T) {
	next := &countingGate{member: true, delay: 50 * time.Millisecond}
	gate := NewCachedGate(next, newMemCache(), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.IsMember(context.Background(), domain.Identity{ID: "u-1"}, "r-1")
		}()
	}
	wg.Wait()

	if n := next.calls.Load(); n > 2 {
		t.Fatalf("backing gate called %d times for one key", n)
	}
}

// heldGate blocks every lookup until release is closed or its ctx ends.
type heldGate struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *heldGate) IsMember(ctx context.Context, _ domain.Identity, _ string) (bool, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	select {
	case <-g.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestCachedGateSharedLookupSurvivesCallerCancel(t *testing.T) {
	next := &heldGate{started: make(chan struct{}), release: make(chan struct{})}
	gate := NewCachedGate(next, newMemCache(), time.Minute)
	id := domain.Identity{ID: "u-1"}

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := gate.IsMember(firstCtx, id, "r-1")
		first <- err
	}()
	<-next.started

	type answer struct {
		ok  bool
		err error
	}
	second := make(chan answer, 1)
	go func() {
		ok, err := gate.IsMember(context.Background(), id, "r-1")
		second <- answer{ok, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(next.release)
	select {
	case got := <-second:
		if got.err != nil || !got.ok {
			t.Fatalf("waiting caller = %v, %v", got.ok, got.err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiting caller never answered")
	}
	if n := next.calls.Load(); n != 1 {
		t.Fatalf("backing gate called %d times, want 1", n)
	}
}
