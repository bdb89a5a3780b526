package cache

import (
	"context"
	"time"

	"github.com/bluele/gcache"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
)

// UserDirectory caches user lookups by id in a process-local LRU.
// Lookup errors, including not-found, are never cached.
type UserDirectory struct {
	next port.UserRepository
	byID gcache.Cache
}

// NewUserDirectory decorates next with an LRU of size entries expiring after ttl.
func NewUserDirectory(next port.UserRepository, size int, ttl time.Duration) *UserDirectory {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &UserDirectory{
		next: next,
		byID: gcache.New(size).LRU().Expiration(ttl).Build(),
	}
}

// GetByID serves from the cache when possible.
func (d *UserDirectory) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if cached, err := d.byID.Get(id); err == nil {
		user := cached.(domain.User)
		return &user, nil
	}

	user, err := d.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = d.byID.Set(id, *user)
	return user, nil
}

// GetByEmail always reaches the backing repository; login is not a hot path.
func (d *UserDirectory) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return d.next.GetByEmail(ctx, email)
}

// Invalidate drops a cached user.
func (d *UserDirectory) Invalidate(id string) {
	d.byID.Remove(id)
}

var (
	_ port.UserRepository = (*UserDirectory)(nil)
	_ port.UserCache      = (*UserDirectory)(nil)
)
