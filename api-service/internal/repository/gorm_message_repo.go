package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

// GormMessageRepository reads history from the messages table.
type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error) {
	var models []schema.MessageModel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, len(models))
	for i, m := range models {
		messages[i] = domain.Message{
			ID:        strconv.FormatUint(m.ID, 10),
			MessageID: m.MessageID,
			Content:   m.Content,
			UserID:    m.UserID,
			Username:  m.Username,
			CreatedAt: m.CreatedAt,
		}
	}
	return messages, nil
}
