package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/repository"
)

var (
	// ErrImpersonationForbidden indicates the caller is not an administrator.
	ErrImpersonationForbidden = errors.New("impersonation requires an administrator")
	// ErrImpersonationTargetNotFound indicates the target user does not exist or is inactive.
	ErrImpersonationTargetNotFound = errors.New("impersonation target not found")
)

// ImpersonationService lets an administrator act as another user. Its identity
// replaces the normal resolution pipeline for the request; no session is tracked.
type ImpersonationService struct {
	tokens *TokenService
	users  port.UserRepository
	logger *zap.Logger
}

// NewImpersonationService constructs an ImpersonationService.
func NewImpersonationService(tokens *TokenService, users port.UserRepository, logger *zap.Logger) *ImpersonationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImpersonationService{tokens: tokens, users: users, logger: logger}
}

// Impersonate resolves the identity of req.TargetUserID on behalf of the admin
// owning req.CallerToken.
func (s *ImpersonationService) Impersonate(ctx context.Context, req port.ImpersonationRequest) (domain.Identity, error) {
	caller, err := s.tokens.Validate(ctx, req.CallerToken)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("resolve impersonator: %w", err)
	}
	if caller == nil || !caller.IsAdmin() {
		return domain.Identity{}, ErrImpersonationForbidden
	}

	targetID := strings.TrimSpace(req.TargetUserID)
	if targetID == "" {
		return domain.Identity{}, ErrImpersonationTargetNotFound
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Identity{}, ErrImpersonationTargetNotFound
		}
		return domain.Identity{}, fmt.Errorf("lookup impersonation target: %w", err)
	}
	if !target.IsActive {
		return domain.Identity{}, ErrImpersonationTargetNotFound
	}

	s.logger.Info("impersonation granted",
		zap.String("admin_id", caller.ID),
		zap.String("target_user_id", target.ID),
	)

	identity := domain.UserIdentity(*target)
	identity.ImpersonatorID = caller.ID
	return identity, nil
}

var _ port.Impersonator = (*ImpersonationService)(nil)
