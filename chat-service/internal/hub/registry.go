package hub

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/chaterr"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Conn is anything the registry can deliver a frame to.
type Conn interface {
	ID() string
	// Send must return once ctx is done.
	Send(ctx context.Context, payload []byte) error
}

// BroadcastResult reports the outcome of one fan-out.
type BroadcastResult struct {
	Delivered int
	Failed    []string
}

type room struct {
	mu    sync.RWMutex // guards conns and dead
	conns map[string]Conn
	dead  bool

	// fanout serializes broadcasts so every member sees one room's events
	// in the order they were accepted.
	fanout sync.Mutex
}

// Registry maps room ids to the connections attached to them. Rooms are
// independent: no lock is shared between two rooms.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]*room
	sendTimeout time.Duration
}

// DefaultSendTimeout bounds one delivery when NewRegistry gets no timeout.
const DefaultSendTimeout = 5 * time.Second

func NewRegistry(sendTimeout time.Duration) *Registry {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Registry{
		rooms:       make(map[string]*room),
		sendTimeout: sendTimeout,
	}
}

func (r *Registry) lookup(roomID string, create bool) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok && create {
		rm = &room{conns: make(map[string]Conn)}
		r.rooms[roomID] = rm
	}
	return rm
}

// Attach adds c to the room. It returns false if c was already attached.
func (r *Registry) Attach(roomID string, c Conn) bool {
	for {
		rm := r.lookup(roomID, true)

		rm.mu.Lock()
		if rm.dead {
			// Pruned between lookup and lock; take the fresh one.
			rm.mu.Unlock()
			continue
		}
		if _, ok := rm.conns[c.ID()]; ok {
			rm.mu.Unlock()
			return false
		}
		rm.conns[c.ID()] = c
		size := len(rm.conns)
		rm.mu.Unlock()

		l := log.L()
		l.Debug().Str(log.FieldConnID, c.ID()).Str(log.FieldRoomID, roomID).Int("members", size).Msg("connection attached")
		return true
	}
}

// Detach removes c from the room. Removing an absent connection is a no-op.
func (r *Registry) Detach(roomID string, c Conn) bool {
	rm := r.lookup(roomID, false)
	if rm == nil {
		return false
	}

	rm.mu.Lock()
	_, ok := rm.conns[c.ID()]
	delete(rm.conns, c.ID())
	empty := len(rm.conns) == 0
	rm.mu.Unlock()

	if empty {
		r.prune(roomID, rm)
	}
	if ok {
		l := log.L()
		l.Debug().Str(log.FieldConnID, c.ID()).Str(log.FieldRoomID, roomID).Msg("connection detached")
	}
	return ok
}

func (r *Registry) prune(roomID string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[roomID] != rm {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.conns) > 0 {
		return
	}
	rm.dead = true
	delete(r.rooms, roomID)
}

// Broadcast sends payload to every connection attached when the call starts.
// Each send gets its own timeout. Connections whose send fails are detached
// once the fan-out is done; the other recipients are unaffected.
func (r *Registry) Broadcast(ctx context.Context, roomID string, payload []byte) BroadcastResult {
	var res BroadcastResult

	rm := r.lookup(roomID, false)
	if rm == nil {
		return res
	}

	rm.fanout.Lock()

	rm.mu.RLock()
	snapshot := make([]Conn, 0, len(rm.conns))
	for _, c := range rm.conns {
		snapshot = append(snapshot, c)
	}
	rm.mu.RUnlock()

	var failed []Conn
	for _, c := range snapshot {
		sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
		err := c.Send(sendCtx, payload)
		cancel()

		if err != nil {
			err = chaterr.New(chaterr.KindTransport, "send", err)
			l := log.L()
			l.Warn().Err(err).
				Str(log.FieldErrorKind, string(chaterr.KindTransport)).
				Str(log.FieldConnID, c.ID()).
				Str(log.FieldRoomID, roomID).
				Msg("send failed, dropping connection")
			failed = append(failed, c)
			res.Failed = append(res.Failed, c.ID())
			continue
		}
		res.Delivered++
	}

	rm.fanout.Unlock()

	for _, c := range failed {
		r.Detach(roomID, c)
	}
	return res
}

// Members returns the number of connections attached to roomID.
func (r *Registry) Members(roomID string) int {
	rm := r.lookup(roomID, false)
	if rm == nil {
		return 0
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.conns)
}

// Rooms returns the number of rooms with at least one connection.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
