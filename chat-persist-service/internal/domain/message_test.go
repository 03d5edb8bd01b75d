package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecodeAndClassify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		system  bool
		invalid bool
	}{
		{"user message", `{"message_id":"m1","kind":"user-message","room_id":"r","user_id":"u","username":"a","content":"hi","created_at":"2026-01-02T03:04:05Z"}`, false, false},
		{"system by type", `{"type":"system","kind":"system-join","room_id":"r","content":"a joined"}`, true, false},
		{"system by kind", `{"kind":"system-leave","room_id":"r","content":"a left"}`, true, false},
		{"missing sender", `{"room_id":"r","content":"hi"}`, false, true},
		{"missing room", `{"user_id":"u","content":"hi"}`, false, true},
		{"blank content", `{"room_id":"r","user_id":"u","content":"  "}`, false, true},
		{"unknown kind", `{"kind":"edit","room_id":"r","user_id":"u","content":"x"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRecord([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeRecord: %v", err)
			}
			if rec.IsSystem() != tt.system {
				t.Fatalf("IsSystem = %v", rec.IsSystem())
			}
			if tt.system {
				return
			}
			if err := rec.Validate(); (err != nil) != tt.invalid {
				t.Fatalf("Validate = %v", err)
			}
			if tt.invalid && !errors.Is(rec.Validate(), ErrInvalidRecord) {
				t.Fatalf("Validate error not ErrInvalidRecord")
			}
		})
	}

	if _, err := DecodeRecord([]byte("{not json")); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestDedupKey(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	withID := RelayRecord{MessageID: "m-1", RoomID: "r", UserID: "u", Content: "hi", CreatedAt: at}
	if withID.DedupKey() != "m-1" {
		t.Fatalf("DedupKey = %s", withID.DedupKey())
	}

	a := RelayRecord{RoomID: "r", UserID: "u", Content: "hi", CreatedAt: at}
	b := a
	if a.DedupKey() != b.DedupKey() || !strings.HasPrefix(a.DedupKey(), "sha256:") {
		t.Fatalf("natural key unstable: %s vs %s", a.DedupKey(), b.DedupKey())
	}
	if len(a.DedupKey()) > 64 {
		t.Fatalf("natural key too long for the message_id column: %d", len(a.DedupKey()))
	}

	b.Content = "hi!"
	if a.DedupKey() == b.DedupKey() {
		t.Fatal("different content produced the same key")
	}
}

func TestToMessageFillsTimestamp(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := RelayRecord{MessageID: "m", RoomID: "r", UserID: "u", Content: "x"}
	if got := rec.ToMessage(now); !got.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v", got.CreatedAt)
	}
}
