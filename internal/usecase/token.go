package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/security"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/telemetry"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

// maxRawTokenLength bounds what is worth hashing; anything longer is malformed.
const maxRawTokenLength = 255

// minRevokedMarkerTTL keeps revocation markers alive even with a very short cache TTL.
const minRevokedMarkerTTL = time.Minute

var (
	// ErrInvalidChannel indicates an unsupported token channel.
	ErrInvalidChannel = errors.New("invalid token channel")
	// ErrTokenCollision indicates two consecutive generated tokens collided with stored hashes.
	ErrTokenCollision = errors.New("token collision")
)

// TokenService issues, validates and revokes opaque access tokens.
type TokenService struct {
	tokens   port.TokenRepository
	users    port.UserRepository
	cache    port.TokenCache
	cacheTTL time.Duration
	events   port.EventPublisher
	metrics  *telemetry.IdentityMetrics
	logger   *zap.Logger
	now      func() time.Time
	generate func() (string, error)
}

// NewTokenService constructs a TokenService.
func NewTokenService(tokens port.TokenRepository, users port.UserRepository, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		tokens:   tokens,
		users:    users,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		generate: security.GenerateAccessToken,
	}
}

// WithCache enables the token-hash to user-id cache.
func (s *TokenService) WithCache(cache port.TokenCache, ttl time.Duration) *TokenService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// WithEvents enables revocation events.
func (s *TokenService) WithEvents(events port.EventPublisher) *TokenService {
	s.events = events
	return s
}

// WithMetrics enables token counters.
func (s *TokenService) WithMetrics(metrics *telemetry.IdentityMetrics) *TokenService {
	s.metrics = metrics
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithGenerator overrides the random token source.
func (s *TokenService) WithGenerator(generate func() (string, error)) *TokenService {
	if generate != nil {
		s.generate = generate
	}
	return s
}

// Issue creates a token for userID on channel and returns its plaintext.
// The plaintext is never stored.
func (s *TokenService) Issue(ctx context.Context, userID string, channel domain.Channel, device string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if !channel.Valid() {
		return "", ErrInvalidChannel
	}

	var devicePtr *string
	if trimmed := strings.TrimSpace(device); trimmed != "" {
		devicePtr = &trimmed
	}

	for attempt := 0; attempt < 2; attempt++ {
		raw, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}

		err = s.tokens.Create(ctx, domain.AccessToken{
			ID:        uuid.NewString(),
			Channel:   channel,
			TokenHash: security.HashToken(raw),
			UserID:    userID,
			Device:    devicePtr,
			CreatedAt: s.now(),
		})
		if err == nil {
			s.metrics.ObserveTokenIssued(string(channel))
			return raw, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return "", fmt.Errorf("store token: %w", err)
		}

		s.logger.Warn("generated token collided with an existing hash; regenerating",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1),
		)
	}

	return "", ErrTokenCollision
}

// Validate resolves raw to its active user. Malformed, unknown or revoked
// tokens resolve to (nil, nil); only storage failures return an error.
func (s *TokenService) Validate(ctx context.Context, raw string) (*domain.User, error) {
	token, ok := NormalizeToken(raw)
	if !ok {
		if raw != "" {
			s.metrics.ObserveValidation(telemetry.ValidationMalformed)
		}
		return nil, nil
	}

	hash := security.HashToken(token)

	userID, revoked := s.cachedOwner(ctx, hash)
	if revoked {
		s.metrics.ObserveValidation(telemetry.ValidationRevoked)
		return nil, nil
	}
	if userID == "" {
		stored, err := s.tokens.GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.metrics.ObserveValidation(telemetry.ValidationUnknown)
				return nil, nil
			}
			s.metrics.ObserveValidation(telemetry.ValidationError)
			return nil, fmt.Errorf("lookup token: %w", err)
		}
		userID = stored.UserID
		s.rememberOwner(ctx, hash, userID)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveValidation(telemetry.ValidationInactive)
			return nil, nil
		}
		s.metrics.ObserveValidation(telemetry.ValidationError)
		return nil, fmt.Errorf("lookup token owner: %w", err)
	}
	if !user.IsActive {
		s.metrics.ObserveValidation(telemetry.ValidationInactive)
		return nil, nil
	}

	s.metrics.ObserveValidation(telemetry.ValidationValid)
	return user, nil
}

// Revoke deletes the token matching raw. It reports whether anything was deleted.
func (s *TokenService) Revoke(ctx context.Context, raw string) (bool, error) {
	token, ok := NormalizeToken(raw)
	if !ok {
		return false, nil
	}

	deleted, err := s.tokens.DeleteByHash(ctx, security.HashToken(token))
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	if len(deleted) == 0 {
		return false, nil
	}

	s.afterRevoke(ctx, deleted[0].UserID, deleted, false)
	return true, nil
}

// RevokeAll deletes every token of userID. It reports whether anything was deleted.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}

	deleted, err := s.tokens.DeleteAllForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("revoke user tokens: %w", err)
	}
	if len(deleted) == 0 {
		return false, nil
	}

	s.afterRevoke(ctx, userID, deleted, true)
	return true, nil
}

func (s *TokenService) afterRevoke(ctx context.Context, userID string, deleted []domain.AccessToken, all bool) {
	if s.cache != nil {
		hashes := make([]string, 0, len(deleted))
		for _, token := range deleted {
			hashes = append(hashes, token.TokenHash)
		}
		if err := s.cache.MarkRevoked(ctx, s.revokedMarkerTTL(), hashes...); err != nil {
			s.logger.Warn("failed to mark revoked tokens in cache", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if s.events != nil {
		event := domain.TokensRevokedEvent{
			EventID:   uuid.NewString(),
			UserID:    userID,
			Count:     len(deleted),
			AllTokens: all,
			RevokedAt: s.now(),
		}
		if err := s.events.PublishTokensRevoked(ctx, event); err != nil {
			s.logger.Warn("failed to publish tokens revoked event", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func (s *TokenService) cachedOwner(ctx context.Context, hash string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	userID, revoked, err := s.cache.GetUserID(ctx, hash)
	if err != nil {
		s.logger.Warn("token cache lookup failed", zap.String("token_hash", logger.MaskString(hash)), zap.Error(err))
		return "", false
	}
	return userID, revoked
}

// revokedMarkerTTL outlives any owner entry written by a validation still in flight.
func (s *TokenService) revokedMarkerTTL() time.Duration {
	return max(2*s.cacheTTL, minRevokedMarkerTTL)
}

func (s *TokenService) rememberOwner(ctx context.Context, hash, userID string) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.SetUserID(ctx, hash, userID, s.cacheTTL); err != nil {
		s.logger.Warn("token cache write failed", zap.String("token_hash", logger.MaskString(hash)), zap.Error(err))
	}
}

// NormalizeToken trims raw, strips an optional case-insensitive "Bearer " prefix
// and rejects values that cannot be a token.
func NormalizeToken(raw string) (string, bool) {
	token := strings.TrimSpace(raw)
	if strings.EqualFold(token, "bearer") {
		return "", false
	}
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" || len(token) > maxRawTokenLength || !security.IsAlphanumeric(token) {
		return "", false
	}
	return token, true
}
