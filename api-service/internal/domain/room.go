package domain

import (
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

// Room represents a chat room.
type Room struct {
	ID           string
	Name         string
	IsPrivate    bool
	PasswordHash string
	CreatedBy    string
	CreatedAt    time.Time
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=100"`
	IsPrivate bool   `json:"is_private"`
	Password  string `json:"password"`
}

// JoinRoomRequest carries the password of a private room.
type JoinRoomRequest struct {
	Password string `json:"password"`
}

// ListRoomsRequest represents a list rooms request.
type ListRoomsRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRoomsResponse represents a paginated list response.
type ListRoomsResponse struct {
	Rooms      []RoomResponse `json:"rooms"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// JoinRoomResponse reports the caller's membership after a join.
type JoinRoomResponse struct {
	RoomID        string `json:"room_id"`
	Role          string `json:"role"`
	AlreadyMember bool   `json:"already_member"`
}

// ToResponse converts Room to RoomResponse.
func (r *Room) ToResponse() RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		IsPrivate: r.IsPrivate,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}

// RoomToModel converts a domain Room to its GORM model.
func RoomToModel(r *Room) *schema.RoomModel {
	return &schema.RoomModel{
		ID:           r.ID,
		Name:         r.Name,
		IsPrivate:    r.IsPrivate,
		PasswordHash: r.PasswordHash,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
	}
}

// RoomFromModel converts a GORM model to a domain Room.
func RoomFromModel(m *schema.RoomModel) *Room {
	return &Room{
		ID:           m.ID,
		Name:         m.Name,
		IsPrivate:    m.IsPrivate,
		PasswordHash: m.PasswordHash,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}
