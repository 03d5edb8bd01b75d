package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/api-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/audit"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNameExists   = errors.New("room name already exists")
	ErrPasswordRequired = errors.New("private room requires a password")
	ErrWrongPassword    = errors.New("wrong room password")
)

type roomServiceImpl struct {
	repo repository.RoomRepository
}

// NewRoomService creates a new room service.
func NewRoomService(repo repository.RoomRepository) RoomService {
	return &roomServiceImpl{repo: repo}
}

// CreateRoom creates a room owned by userID.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.RoomResponse, error) {
	l := log.Ctx(ctx)

	room := &domain.Room{
		Name:      strings.TrimSpace(req.Name),
		IsPrivate: req.IsPrivate,
		CreatedBy: userID,
	}

	if req.IsPrivate {
		if req.Password == "" {
			return nil, ErrPasswordRequired
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			l.Error().Err(err).Msg("failed to hash room password")
			return nil, err
		}
		room.PasswordHash = string(hash)
	}

	if err := s.repo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrRoomNameExists) {
			return nil, ErrRoomNameExists
		}
		return nil, err
	}

	audit.Record(ctx, audit.Entry{Action: audit.ActionCreateRoom, UserID: userID, RoomID: room.ID, Detail: room.Name}, "room created")

	resp := room.ToResponse()
	return &resp, nil
}

// ListRooms lists rooms with pagination.
func (s *roomServiceImpl) ListRooms(ctx context.Context, req *domain.ListRoomsRequest) (*domain.ListRoomsResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rooms, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}

	responses := make([]domain.RoomResponse, len(rooms))
	for i := range rooms {
		responses[i] = rooms[i].ToResponse()
	}

	totalPages := (total + pageSize - 1) / pageSize

	return &domain.ListRoomsResponse{
		Rooms:      responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetRoom retrieves a room by ID.
func (s *roomServiceImpl) GetRoom(ctx context.Context, roomID string) (*domain.RoomResponse, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	resp := room.ToResponse()
	return &resp, nil
}

// JoinRoom adds userID to roomID as a member. Joining a room twice is not an
// error.
func (s *roomServiceImpl) JoinRoom(ctx context.Context, userID, roomID string, req *domain.JoinRoomRequest) (*domain.JoinRoomResponse, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	role, err := s.repo.MemberRole(ctx, roomID, userID)
	if err == nil {
		return &domain.JoinRoomResponse{RoomID: roomID, Role: role, AlreadyMember: true}, nil
	}
	if !errors.Is(err, repository.ErrNotMember) {
		return nil, err
	}

	if room.IsPrivate {
		if bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(req.Password)) != nil {
			audit.Record(ctx, audit.Entry{Action: audit.ActionJoinRoom, UserID: userID, RoomID: roomID, Err: ErrWrongPassword}, "join denied: wrong password")
			return nil, ErrWrongPassword
		}
	}

	created, err := s.repo.AddMember(ctx, roomID, userID, schema.RoleMember)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a race with a concurrent join.
		role, err := s.repo.MemberRole(ctx, roomID, userID)
		if err != nil {
			return nil, err
		}
		return &domain.JoinRoomResponse{RoomID: roomID, Role: role, AlreadyMember: true}, nil
	}

	audit.Record(ctx, audit.Entry{Action: audit.ActionJoinRoom, UserID: userID, RoomID: roomID}, "room joined")

	return &domain.JoinRoomResponse{RoomID: roomID, Role: schema.RoleMember}, nil
}
