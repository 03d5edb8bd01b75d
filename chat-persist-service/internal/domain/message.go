package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record kinds written by the gateway.
const (
	KindUserMessage = "user-message"
	KindSystemJoin  = "system-join"
	KindSystemLeave = "system-leave"

	TypeSystem = "system"
)

var (
	ErrMalformedRecord = errors.New("malformed relay record")
	ErrInvalidRecord   = errors.New("invalid relay record")
)

// RelayRecord is the queue body produced by the chat gateway.
type RelayRecord struct {
	MessageID string    `json:"message_id"`
	Kind      string    `json:"kind"`
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DecodeRecord parses a queue body.
func DecodeRecord(body []byte) (*RelayRecord, error) {
	var rec RelayRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &rec, nil
}

// IsSystem reports whether the record is a join or leave notice.
func (r *RelayRecord) IsSystem() bool {
	return r.Type == TypeSystem || strings.HasPrefix(r.Kind, "system-")
}

// Validate checks the fields a stored message needs.
func (r *RelayRecord) Validate() error {
	switch {
	case r.RoomID == "":
		return fmt.Errorf("%w: missing room_id", ErrInvalidRecord)
	case r.UserID == "":
		return fmt.Errorf("%w: missing user_id", ErrInvalidRecord)
	case strings.TrimSpace(r.Content) == "":
		return fmt.Errorf("%w: empty content", ErrInvalidRecord)
	case r.Kind != "" && r.Kind != KindUserMessage:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	return nil
}

// DedupKey returns the id a redelivery of this record collapses onto. The
// gateway-assigned message id wins; older producers get a content hash.
func (r *RelayRecord) DedupKey() string {
	if r.MessageID != "" {
		return r.MessageID
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", r.RoomID, r.UserID, r.Content, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return "sha256:" + hex.EncodeToString(h.Sum(nil))[:48]
}

// PersistedMessage is a user message as the store writes it.
type PersistedMessage struct {
	MessageID string
	RoomID    string
	UserID    string
	Username  string
	Content   string
	CreatedAt time.Time
}

// ToMessage converts a validated record. A zero timestamp is replaced by now.
func (r *RelayRecord) ToMessage(now time.Time) *PersistedMessage {
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	return &PersistedMessage{
		MessageID: r.DedupKey(),
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		Username:  r.Username,
		Content:   r.Content,
		CreatedAt: created.UTC(),
	}
}
