package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
)

// CassandraMessageRepository reads history from messages_by_room. The
// partition is clustered by (created_at DESC, message_id DESC), so rows come
// back newest first whatever id strategy minted them.
type CassandraMessageRepository struct {
	session *gocql.Session
}

func NewCassandraMessageRepository(session *gocql.Session) *CassandraMessageRepository {
	return &CassandraMessageRepository{session: session}
}

// ListByRoom reads offset+limit rows and drops the first offset. CQL has no
// OFFSET, and history pages are small.
func (r *CassandraMessageRepository) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error) {
	query := `SELECT message_id, user_id, username, content, created_at
			  FROM messages_by_room
			  WHERE room_id = ?
			  LIMIT ?`

	iter := r.session.Query(query, roomID, offset+limit).WithContext(ctx).Iter()

	messages := make([]domain.Message, 0, limit)
	var msg domain.Message
	var createdAt time.Time
	skipped := 0

	for iter.Scan(
		&msg.MessageID,
		&msg.UserID,
		&msg.Username,
		&msg.Content,
		&createdAt,
	) {
		if skipped < offset {
			skipped++
			continue
		}
		msg.ID = msg.MessageID
		msg.CreatedAt = createdAt
		messages = append(messages, msg)
		msg = domain.Message{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
