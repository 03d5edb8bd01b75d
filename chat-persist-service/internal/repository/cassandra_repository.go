package repository

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/domain"
)

const createMessagesByRoom = `
	CREATE TABLE IF NOT EXISTS messages_by_room (
		room_id    text,
		message_id text,
		user_id    text,
		username   text,
		content    text,
		created_at timestamp,
		PRIMARY KEY ((room_id), created_at, message_id)
	) WITH CLUSTERING ORDER BY (created_at DESC, message_id DESC)`

// CassandraMessageStore writes to messages_by_room.
type CassandraMessageStore struct {
	session *gocql.Session
}

func NewCassandraMessageStore(session *gocql.Session) *CassandraMessageStore {
	return &CassandraMessageStore{session: session}
}

// EnsureSchema creates messages_by_room if it is missing.
func (s *CassandraMessageStore) EnsureSchema(ctx context.Context) error {
	if err := s.session.Query(createMessagesByRoom).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create messages_by_room: %w", err)
	}
	return nil
}

// InsertMessage writes one row. created_at is stamped once at the gateway and
// travels with the record, so a redelivered message hits the same
// (room_id, created_at, message_id) key and overwrites its own row with
// identical values. The message id doubles as the record id.
func (s *CassandraMessageStore) InsertMessage(ctx context.Context, msg *domain.PersistedMessage) (string, error) {
	query := `
		INSERT INTO messages_by_room (
			room_id, message_id, user_id, username, content, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	err := s.session.Query(query,
		msg.RoomID,
		msg.MessageID,
		msg.UserID,
		msg.Username,
		msg.Content,
		msg.CreatedAt,
	).WithContext(ctx).Idempotent(true).Exec()
	if err != nil {
		return "", fmt.Errorf("failed to save message: %w", err)
	}

	return msg.MessageID, nil
}
