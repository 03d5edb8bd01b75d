package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
)

// UserService defines the interface for account business logic.
type UserService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	GetUser(ctx context.Context, userID string) (*domain.UserResponse, error)
}

// RoomService defines the interface for rooms and membership.
type RoomService interface {
	CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.RoomResponse, error)
	ListRooms(ctx context.Context, req *domain.ListRoomsRequest) (*domain.ListRoomsResponse, error)
	GetRoom(ctx context.Context, roomID string) (*domain.RoomResponse, error)
	JoinRoom(ctx context.Context, userID, roomID string, req *domain.JoinRoomRequest) (*domain.JoinRoomResponse, error)
}

// HistoryService serves stored messages to room members.
type HistoryService interface {
	GetHistory(ctx context.Context, userID, roomID string, req *domain.HistoryRequest) (*domain.HistoryResponse, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, username string, roles []string) (string, time.Time, error)
}
