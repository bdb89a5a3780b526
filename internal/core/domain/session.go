package domain

import (
	"strings"
	"time"
)

// MaxSessionIDLength bounds client-supplied session identifiers to the column width.
const MaxSessionIDLength = 255

// Session represents a tracked storefront visit for a guest or a signed-in user.
type Session struct {
	ID           int64
	SessionID    string
	UserID       *string
	DeviceType   DeviceType
	OS           string
	Browser      string
	UserAgent    *string
	IPAddress    *string
	Country      *string
	Region       *string
	City         *string
	Latitude     *float64
	Longitude    *float64
	LastActivity time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsGuest reports whether no user has been bound to the session yet.
func (s Session) IsGuest() bool {
	return s.UserID == nil || *s.UserID == ""
}

// OwnedBy reports whether the session is bound to the supplied user.
func (s Session) OwnedBy(userID string) bool {
	return !s.IsGuest() && *s.UserID == userID
}

// CanBindUser reports whether userID may be bound to the session.
// A session bound to one user is never reassigned to another.
func (s Session) CanBindUser(userID string) bool {
	if userID == "" {
		return false
	}
	return s.IsGuest() || *s.UserID == userID
}

// SessionUpdate carries the mutations applied to an existing session row.
// Nil pointers leave the corresponding column unchanged.
type SessionUpdate struct {
	LastActivity time.Time
	IPAddress    *string
	BindUserID   *string
	SessionID    *string
}

// NormalizeSessionID turns a client-supplied identifier into its canonical form.
// Empty strings, the literal "null" and oversized values are treated as absent.
func NormalizeSessionID(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	if len(trimmed) > MaxSessionIDLength {
		return ""
	}
	return trimmed
}
