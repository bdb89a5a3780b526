package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/security"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
)

// LoginRequest carries credentials and the channel the token is issued for.
type LoginRequest struct {
	Email    string
	Password string
	Channel  domain.Channel
	Device   string
}

// LoginResult is a freshly issued token and its owner.
type LoginResult struct {
	Token   string
	Channel domain.Channel
	User    domain.User
}

// AuthService exchanges credentials for access tokens and revokes them.
type AuthService struct {
	users     port.UserRepository
	userCache port.UserCache
	tokens    *TokenService
	logger    *zap.Logger
	verify    func(password, encoded string) (bool, error)
}

// NewAuthService constructs an AuthService.
func NewAuthService(users port.UserRepository, tokens *TokenService, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
		verify: security.VerifyPassword,
	}
}

// WithUserCache lets login and logout-everywhere drop the user's cached directory entry.
// Role and active-flag changes otherwise surface only when the entry expires.
func (s *AuthService) WithUserCache(cache port.UserCache) *AuthService {
	s.userCache = cache
	return s
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	channel := req.Channel
	if channel == "" {
		channel = domain.ChannelWeb
	}
	if !channel.Valid() {
		return nil, ErrInvalidChannel
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login rejected: unknown email", zap.String("email", logger.MaskEmail(email)))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login rejected: password mismatch", zap.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	// The email lookup is uncached, so it carries the current role and active flag.
	s.forgetUser(user.ID)

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	token, err := s.tokens.Issue(ctx, user.ID, channel, req.Device)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("channel", string(channel)))

	return &LoginResult{Token: token, Channel: channel, User: *user}, nil
}

// Logout revokes the presented token.
func (s *AuthService) Logout(ctx context.Context, rawToken string) (bool, error) {
	return s.tokens.Revoke(ctx, rawToken)
}

// LogoutEverywhere revokes every token of userID.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID string) (bool, error) {
	revoked, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		return false, err
	}
	s.forgetUser(userID)
	if revoked {
		s.logger.Info("all tokens revoked", zap.String("user_id", userID))
	}
	return revoked, nil
}

func (s *AuthService) forgetUser(userID string) {
	if s.userCache != nil {
		s.userCache.Invalidate(userID)
	}
}
