package port

import (
	"context"
	"time"
)

// TokenCache keeps a short-lived mapping of token hashes to their owning user.
// GetUserID returns an empty string without error on a miss, and revoked=true when
// the hash carries a revocation marker. SetUserID must never replace a marker, so a
// validation that read the token row before a concurrent revoke cannot re-cache it.
type TokenCache interface {
	GetUserID(ctx context.Context, tokenHash string) (userID string, revoked bool, err error)
	SetUserID(ctx context.Context, tokenHash string, userID string, ttl time.Duration) error
	MarkRevoked(ctx context.Context, ttl time.Duration, tokenHashes ...string) error
}
