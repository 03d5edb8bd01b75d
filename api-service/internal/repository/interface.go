package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomNameExists = errors.New("room name already exists")
	ErrNotMember      = errors.New("not a member")
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// RoomRepository defines the interface for rooms and their memberships.
type RoomRepository interface {
	// Create stores room and makes its creator an admin member in one
	// transaction.
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Room, int, error)
	// AddMember reports false when userID was already a member.
	AddMember(ctx context.Context, roomID, userID, role string) (bool, error)
	// MemberRole returns ErrNotMember when userID is not in roomID.
	MemberRole(ctx context.Context, roomID, userID string) (string, error)
}

// MessageRepository reads stored chat history.
type MessageRepository interface {
	// ListByRoom returns up to limit messages of roomID, newest first,
	// skipping the first offset.
	ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]domain.Message, error)
}
