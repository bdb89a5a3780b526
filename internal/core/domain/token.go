package domain

import (
	"strings"
	"time"
)

// Channel identifies where an access token was issued.
type Channel string

const (
	// ChannelWeb tokens belong to browser clients and usually travel in a cookie.
	ChannelWeb Channel = "web"
	// ChannelApp tokens belong to native apps and travel in headers.
	ChannelApp Channel = "app"
)

// Valid reports whether the channel is one of the supported values.
func (c Channel) Valid() bool {
	return c == ChannelWeb || c == ChannelApp
}

// ParseChannel resolves a channel name, defaulting to web for empty input.
func ParseChannel(value string) (Channel, bool) {
	normalized := Channel(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return ChannelWeb, true
	}
	if !normalized.Valid() {
		return "", false
	}
	return normalized, true
}

// AccessToken is a persisted opaque bearer token. Only the hash of the token is stored.
type AccessToken struct {
	ID         string
	Channel    Channel
	TokenHash  string
	UserID     string
	Device     *string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
