package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/cache"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/schema"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// MembershipGate decides whether an identity may attach to a room.
type MembershipGate interface {
	IsMember(ctx context.Context, identity domain.Identity, roomID string) (bool, error)
}

// GormMembershipGate reads the room_members table.
type GormMembershipGate struct {
	db *gorm.DB
}

func NewGormMembershipGate(db *gorm.DB) *GormMembershipGate {
	return &GormMembershipGate{db: db}
}

func (g *GormMembershipGate) IsMember(ctx context.Context, identity domain.Identity, roomID string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&schema.RoomMemberModel{}).
		Where("room_id = ? AND user_id = ?", roomID, identity.ID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

const membershipLookupTimeout = 5 * time.Second

// CachedGate puts a cache in front of another gate. Only positive answers
// are cached, so a user who just joined is never refused from a stale entry.
type CachedGate struct {
	next  MembershipGate
	cache cache.MembershipCache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewCachedGate(next MembershipGate, c cache.MembershipCache, ttl time.Duration) *CachedGate {
	return &CachedGate{next: next, cache: c, ttl: ttl}
}

func (g *CachedGate) IsMember(ctx context.Context, identity domain.Identity, roomID string) (bool, error) {
	key := g.cache.BuildKey(roomID, identity.ID)
	l := log.Ctx(ctx)

	member, err := g.cache.Get(ctx, key)
	if err == nil {
		return member, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("membership cache read failed")
	}

	// Concurrent lookups for one key share a single backing call. That call
	// must outlive any one caller, so it runs detached from ctx's
	// cancellation under its own deadline.
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), membershipLookupTimeout)
		defer cancel()

		ok, err := g.next.IsMember(lookupCtx, identity, roomID)
		if err != nil {
			return false, err
		}
		if ok {
			if err := g.cache.Set(lookupCtx, key, true, g.ttl); err != nil {
				l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("membership cache write failed")
			}
		}
		return ok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		ok, _ := res.Val.(bool)
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
