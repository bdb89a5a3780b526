package port

import (
	"context"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
)

// TokenRepository manages persisted access tokens across both channels.
type TokenRepository interface {
	Create(ctx context.Context, token domain.AccessToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) ([]domain.AccessToken, error)
	DeleteAllForUser(ctx context.Context, userID string) ([]domain.AccessToken, error)
}
