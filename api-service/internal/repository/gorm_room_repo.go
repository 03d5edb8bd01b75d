package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new room with its creator as admin.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	room.ID = uuid.New().String()
	model := domain.RoomToModel(room)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return uniqueViolation(err, "name", ErrRoomNameExists)
		}
		return tx.Create(&schema.RoomMemberModel{
			RoomID: room.ID,
			UserID: room.CreatedBy,
			Role:   schema.RoleAdmin,
		}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrRoomNameExists) {
			l.Error().Err(err).Msg("failed to create room in db")
		}
		return err
	}

	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var model schema.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return domain.RoomFromModel(&model), nil
}

// List retrieves rooms with pagination, newest first.
func (r *GormRoomRepository) List(ctx context.Context, page, pageSize int) ([]domain.Room, int, error) {
	l := log.Ctx(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&schema.RoomModel{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count rooms")
		return nil, 0, err
	}

	var models []schema.RoomModel
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, 0, err
	}

	rooms := make([]domain.Room, len(models))
	for i := range models {
		rooms[i] = *domain.RoomFromModel(&models[i])
	}
	return rooms, int(total), nil
}

// AddMember inserts a membership row unless one exists.
func (r *GormRoomRepository) AddMember(ctx context.Context, roomID, userID, role string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.RoomMemberModel{RoomID: roomID, UserID: userID, Role: role})
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).
			Str(log.FieldRoomID, roomID).
			Str(log.FieldUserID, userID).
			Msg("failed to add room member")
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MemberRole looks up the role of userID in roomID.
func (r *GormRoomRepository) MemberRole(ctx context.Context, roomID, userID string) (string, error) {
	var m schema.RoomMemberModel
	result := r.db.WithContext(ctx).First(&m, "room_id = ? AND user_id = ?", roomID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrNotMember
		}
		return "", result.Error
	}
	return m.Role, nil
}
