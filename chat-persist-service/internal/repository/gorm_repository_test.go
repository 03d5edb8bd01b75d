package repository

import (
	"context"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
	"github.com/weiawesome/wes-io-chat/pkg/schema/schematest"
)

func newMessage(id, content string) *domain.PersistedMessage {
	return &domain.PersistedMessage{
		MessageID: id,
		RoomID:    "r-1",
		UserID:    "u-1",
		Username:  "alice",
		Content:   content,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInsertMessage(t *testing.T) {
	db := schematest.Open(t)
	store := NewGormMessageStore(db)

	id, err := store.InsertMessage(context.Background(), newMessage("m-1", "hello"))
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if id == "" || id == "0" {
		t.Fatalf("record id = %q", id)
	}

	var got schema.MessageModel
	if err := db.Where("message_id = ?", "m-1").First(&got).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Content != "hello" || got.RoomID != "r-1" || got.Username != "alice" {
		t.Fatalf("stored %+v", got)
	}
}

func TestInsertMessageIsIdempotent(t *testing.T) {
	db := schematest.Open(t)
	store := NewGormMessageStore(db)
	ctx := context.Background()

	first, err := store.InsertMessage(ctx, newMessage("m-1", "hello"))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second, err := store.InsertMessage(ctx, newMessage("m-1", "hello"))
	if err != nil {
		t.Fatalf("redelivered insert: %v", err)
	}
	if first != second {
		t.Fatalf("redelivery returned %s, want %s", second, first)
	}

	other, err := store.InsertMessage(ctx, newMessage("m-2", "hello"))
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if other == first {
		t.Fatal("distinct messages share a record id")
	}

	var count int64
	db.Model(&schema.MessageModel{}).Count(&count)
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}
}

func TestInsertMessageFailsCleanly(t *testing.T) {
	db := schematest.Open(t)
	store := NewGormMessageStore(db)

	if err := db.Migrator().DropTable(&schema.MessageModel{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := store.InsertMessage(context.Background(), newMessage("m-1", "x")); err == nil {
		t.Fatal("insert into missing table succeeded")
	}
}
