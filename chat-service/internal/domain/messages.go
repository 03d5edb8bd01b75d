package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventKind is the kind of a ChatEvent.
type EventKind string

const (
	KindUserMessage EventKind = "user-message"
	KindSystemJoin  EventKind = "system-join"
	KindSystemLeave EventKind = "system-leave"
)

// RelayTypeSystem marks system records on the queue.
const RelayTypeSystem = "system"

// IsSystem reports whether k is a join or leave notice.
func (k EventKind) IsSystem() bool {
	return k == KindSystemJoin || k == KindSystemLeave
}

var (
	ErrEmptyContent  = errors.New("message content is empty")
	ErrMissingSender = errors.New("user message has no sender")
)

// Identity is an authenticated principal.
type Identity struct {
	ID   string
	Name string
}

// ChatEvent is what flows through both the broadcast and the relay path.
// CreatedAt is set once, when the gateway accepts the event.
type ChatEvent struct {
	MessageID string
	RoomID    string
	Sender    *Identity
	Kind      EventKind
	Content   string
	CreatedAt time.Time
}

// NewUserMessage builds a user-message event.
func NewUserMessage(messageID, roomID string, sender Identity, content string, now time.Time) (*ChatEvent, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if sender.ID == "" {
		return nil, ErrMissingSender
	}

	return &ChatEvent{
		MessageID: messageID,
		RoomID:    roomID,
		Sender:    &sender,
		Kind:      KindUserMessage,
		Content:   content,
		CreatedAt: now.UTC(),
	}, nil
}

// NewJoinEvent builds the "<name> joined" notice.
func NewJoinEvent(messageID, roomID, name string, now time.Time) *ChatEvent {
	return newSystemEvent(messageID, roomID, KindSystemJoin, fmt.Sprintf("%s joined", name), now)
}

// NewLeaveEvent builds the "<name> left" notice.
func NewLeaveEvent(messageID, roomID, name string, now time.Time) *ChatEvent {
	return newSystemEvent(messageID, roomID, KindSystemLeave, fmt.Sprintf("%s left", name), now)
}

func newSystemEvent(messageID, roomID string, kind EventKind, content string, now time.Time) *ChatEvent {
	return &ChatEvent{
		MessageID: messageID,
		RoomID:    roomID,
		Kind:      kind,
		Content:   content,
		CreatedAt: now.UTC(),
	}
}

// Server -> Client messages

// OutboundMessage is the JSON text frame sent to every attached client.
type OutboundMessage struct {
	Kind       EventKind `json:"kind"`
	MessageID  string    `json:"message_id,omitempty"`
	RoomID     string    `json:"room_id,omitempty"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Outbound converts e to its client wire form.
func (e *ChatEvent) Outbound() OutboundMessage {
	out := OutboundMessage{
		Kind:      e.Kind,
		RoomID:    e.RoomID,
		Content:   e.Content,
		Timestamp: e.CreatedAt,
	}
	if e.Kind == KindUserMessage {
		out.MessageID = e.MessageID
	}
	if e.Sender != nil {
		out.SenderID = e.Sender.ID
		out.SenderName = e.Sender.Name
	}
	return out
}

// MarshalOutbound encodes the client frame.
func (e *ChatEvent) MarshalOutbound() ([]byte, error) {
	return json.Marshal(e.Outbound())
}

// Relay wire form

// RelayRecord is the queue body read by the persist worker.
type RelayRecord struct {
	MessageID string    `json:"message_id"`
	Kind      EventKind `json:"kind"`
	Type      string    `json:"type,omitempty"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RelayRecord converts e to its queue form.
func (e *ChatEvent) RelayRecord() RelayRecord {
	rec := RelayRecord{
		MessageID: e.MessageID,
		Kind:      e.Kind,
		RoomID:    e.RoomID,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
	if e.Kind.IsSystem() {
		rec.Type = RelayTypeSystem
	}
	if e.Sender != nil {
		rec.UserID = e.Sender.ID
		rec.Username = e.Sender.Name
	}
	return rec
}
