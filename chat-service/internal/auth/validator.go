// Package auth answers the two questions asked before a connection may join
// a room: who is this, and do they belong here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNotMember         = errors.New("not a member")
)

// SessionValidator resolves a bearer credential to an identity.
type SessionValidator interface {
	Validate(ctx context.Context, credential string) (domain.Identity, error)
}

// JWTValidator checks access tokens issued by the api service.
type JWTValidator struct {
	manager *jwt.Manager
}

func NewJWTValidator(manager *jwt.Manager) *JWTValidator {
	return &JWTValidator{manager: manager}
}

// Validate never calls out over the network; ctx is accepted for callers
// that swap in a remote validator.
func (v *JWTValidator) Validate(ctx context.Context, credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return domain.Identity{}, ErrInvalidCredential
	}

	claims, err := v.manager.ValidateToken(credential)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no user id", ErrInvalidCredential)
	}

	name := claims.Username
	if name == "" {
		name = claims.UserID
	}
	return domain.Identity{ID: claims.UserID, Name: name}, nil
}
