package domain

import "time"

// SessionCreatedEvent represents the payload for identity.session.created messages.
type SessionCreatedEvent struct {
	EventID    string
	SessionID  string
	UserID     *string
	DeviceType DeviceType
	OS         string
	Browser    string
	IPAddress  *string
	CreatedAt  time.Time
}

// SessionUserBoundEvent represents the payload for identity.session.user_bound messages,
// emitted when a guest session becomes linked to a signed-in user.
type SessionUserBoundEvent struct {
	EventID   string
	SessionID string
	UserID    string
	BoundAt   time.Time
}

// TokensRevokedEvent represents the payload for identity.tokens.revoked messages.
type TokensRevokedEvent struct {
	EventID   string
	UserID    string
	Count     int
	AllTokens bool
	RevokedAt time.Time
}
