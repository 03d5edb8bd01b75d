package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/api-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

var ErrNotMember = errors.New("not a member of this room")

// HistoryConfig bounds page sizes and how deep a caller may page.
// MaxOffset keeps a Cassandra read, which scans offset+limit rows, bounded.
type HistoryConfig struct {
	DefaultLimit int
	MaxLimit     int
	MaxOffset    int
}

const defaultMaxOffset = 10000

type historyServiceImpl struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	cfg      HistoryConfig
}

func NewHistoryService(rooms repository.RoomRepository, messages repository.MessageRepository, cfg HistoryConfig) HistoryService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(50, cfg.MaxLimit)
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = defaultMaxOffset
	}
	return &historyServiceImpl{rooms: rooms, messages: messages, cfg: cfg}
}

func (s *historyServiceImpl) GetHistory(ctx context.Context, userID, roomID string, req *domain.HistoryRequest) (*domain.HistoryResponse, error) {
	l := log.Ctx(ctx)

	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	if _, err := s.rooms.MemberRole(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return nil, ErrNotMember
		}
		return nil, err
	}

	limit := s.clampLimit(req.Limit)
	offset := min(max(req.Offset, 0), s.cfg.MaxOffset)

	messages, err := s.messages.ListByRoom(ctx, roomID, limit, offset)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to read history")
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &domain.HistoryResponse{
		RoomID:   roomID,
		Messages: messages,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// clampLimit maps a missing limit to the default and bounds the rest to
// 1..MaxLimit.
func (s *historyServiceImpl) clampLimit(limit int) int {
	switch {
	case limit == 0:
		return s.cfg.DefaultLimit
	case limit < 1:
		return 1
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit
	}
	return limit
}
