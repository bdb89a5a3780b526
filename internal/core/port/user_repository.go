package port

import (
	"context"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
)

// UserRepository exposes the user directory lookups needed by identity resolution.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// UserCache drops a cached directory entry so the next lookup reads the source.
type UserCache interface {
	Invalidate(id string)
}
