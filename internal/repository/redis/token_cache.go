package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
)

const defaultTokenCachePrefix = "storefront:token"

// revokedMarker replaces the owner of a revoked hash. User ids never start with '!'.
const revokedMarker = "!revoked"

// TokenCache maps access-token hashes to user ids so hot paths skip PostgreSQL.
type TokenCache struct {
	client *red.Client
	prefix string
}

// NewTokenCache wires a Redis client into a token cache.
func NewTokenCache(client *red.Client, keyPrefix string) *TokenCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultTokenCachePrefix
	}

	return &TokenCache{client: client, prefix: prefix}
}

// GetUserID returns the cached owner of the token hash, or an empty string on a miss.
// A revocation marker is reported as revoked.
func (c *TokenCache) GetUserID(ctx context.Context, tokenHash string) (string, bool, error) {
	key := c.key(tokenHash)
	if key == "" {
		return "", false, nil
	}

	userID, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get token owner: %w", err)
	}
	if userID == revokedMarker {
		return "", true, nil
	}

	return userID, false, nil
}

// SetUserID caches the token owner for ttl with SET NX, so an existing entry or
// revocation marker is left alone. Non-positive ttl disables caching.
func (c *TokenCache) SetUserID(ctx context.Context, tokenHash string, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	key := c.key(tokenHash)
	if key == "" || strings.TrimSpace(userID) == "" {
		return errors.New("token hash and user id must not be empty")
	}

	if err := c.client.SetNX(ctx, key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token owner: %w", err)
	}

	return nil
}

// MarkRevoked overwrites the supplied hashes with a revocation marker kept for ttl.
func (c *TokenCache) MarkRevoked(ctx context.Context, ttl time.Duration, tokenHashes ...string) error {
	if ttl <= 0 {
		return errors.New("revocation marker ttl must be positive")
	}

	pipe := c.client.TxPipeline()
	queued := 0
	for _, hash := range tokenHashes {
		if key := c.key(hash); key != "" {
			pipe.Set(ctx, key, revokedMarker, ttl)
			queued++
		}
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis mark tokens revoked: %w", err)
	}

	return nil
}

func (c *TokenCache) key(tokenHash string) string {
	hash := strings.TrimSpace(tokenHash)
	if hash == "" {
		return ""
	}
	return c.prefix + ":" + hash
}

var _ port.TokenCache = (*TokenCache)(nil)
