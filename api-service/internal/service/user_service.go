package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/api-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/api-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/audit"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const tokenTypeBearer = "bearer"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
)

// userServiceImpl implements UserService interface.
type userServiceImpl struct {
	repo   repository.UserRepository
	tokens TokenIssuer
}

// NewUserService creates a new user service.
func NewUserService(repo repository.UserRepository, tokens TokenIssuer) UserService {
	return &userServiceImpl{repo: repo, tokens: tokens}
}

// Register registers a new user.
func (s *userServiceImpl) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.UserResponse, error) {
	l := log.Ctx(ctx)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		Roles:        []string{"user"},
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, ErrUsernameExists
		}
		l.Error().Err(err).Msg("failed to create user")
		return nil, err
	}

	audit.Record(ctx, audit.Entry{Action: audit.ActionRegister, UserID: user.ID}, "user registered")

	resp := user.ToResponse()
	return &resp, nil
}

// Login authenticates a user and issues an access token.
func (s *userServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			audit.Record(ctx, audit.Entry{Action: audit.ActionLogin, Detail: req.Username, Err: err}, "login failed: user not found")
			return nil, ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get user by username")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		audit.Record(ctx, audit.Entry{Action: audit.ActionLogin, UserID: user.ID, Detail: req.Username, Err: ErrInvalidCredentials}, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, user.Username, user.Roles)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate access token")
		return nil, err
	}

	audit.Record(ctx, audit.Entry{Action: audit.ActionLogin, UserID: user.ID}, "user logged in")

	return &domain.AuthResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   expiresAt,
		User:        user.ToResponse(),
	}, nil
}

// GetUser retrieves a user by ID.
func (s *userServiceImpl) GetUser(ctx context.Context, userID string) (*domain.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to get user")
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}
