package repository

import (
	"context"

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/domain"
)

// MessageStore writes user messages durably.
type MessageStore interface {
	// InsertMessage stores msg and returns its record id. Inserting a message
	// id that is already stored is a no-op returning the existing record id.
	InsertMessage(ctx context.Context, msg *domain.PersistedMessage) (string, error)
}
