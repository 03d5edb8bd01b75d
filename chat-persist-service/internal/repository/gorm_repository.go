package repository

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/chat-persist-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

type gormMessageStore struct {
	db *gorm.DB
}

// NewGormMessageStore writes to the shared messages table.
func NewGormMessageStore(db *gorm.DB) MessageStore {
	return &gormMessageStore{db: db}
}

func (s *gormMessageStore) InsertMessage(ctx context.Context, msg *domain.PersistedMessage) (string, error) {
	model := &schema.MessageModel{
		MessageID: msg.MessageID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}

	var recordID uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).Create(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			recordID = model.ID
			return nil
		}

		var existing schema.MessageModel
		if err := tx.Select("id").Where("message_id = ?", msg.MessageID).First(&existing).Error; err != nil {
			return err
		}
		recordID = existing.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	return strconv.FormatUint(recordID, 10), nil
}
