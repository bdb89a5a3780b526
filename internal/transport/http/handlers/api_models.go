package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes a minimal view of a user returned by the API.
type UserSummary struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  domain.UserRole `json:"role"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
	Channel  string `json:"channel" validate:"omitempty,oneof=web app"`
	Device   string `json:"device" validate:"omitempty,max=255"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	Channel     domain.Channel `json:"channel"`
	User        UserSummary    `json:"user"`
}

// LogoutResponse reports whether any token was revoked.
type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}

// IdentityResponse exposes the resolved visitor. At most one of UserID and SessionID is set.
type IdentityResponse struct {
	Kind           string          `json:"kind"`
	UserID         string          `json:"user_id,omitempty"`
	SessionID      string          `json:"session_id,omitempty"`
	Role           domain.UserRole `json:"role,omitempty"`
	ImpersonatorID string          `json:"impersonator_id,omitempty"`
}

func newIdentityResponse(identity domain.Identity) IdentityResponse {
	kind := "anonymous"
	switch {
	case identity.IsAuthenticated():
		kind = "user"
	case identity.IsGuest():
		kind = "guest"
	}
	return IdentityResponse{
		Kind:           kind,
		UserID:         identity.UserID,
		SessionID:      identity.SessionID,
		Role:           identity.Role,
		ImpersonatorID: identity.ImpersonatorID,
	}
}

// SessionResponse is the admin view of a session row.
type SessionResponse struct {
	SessionID    string            `json:"session_id"`
	UserID       *string           `json:"user_id"`
	DeviceType   domain.DeviceType `json:"device_type"`
	OS           string            `json:"os"`
	Browser      string            `json:"browser"`
	UserAgent    *string           `json:"user_agent,omitempty"`
	IPAddress    *string           `json:"ip_address,omitempty"`
	Country      *string           `json:"country,omitempty"`
	Region       *string           `json:"region,omitempty"`
	City         *string           `json:"city,omitempty"`
	Latitude     *float64          `json:"latitude,omitempty"`
	Longitude    *float64          `json:"longitude,omitempty"`
	LastActivity time.Time         `json:"last_activity"`
	CreatedAt    time.Time         `json:"created_at"`
}

func newSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		DeviceType:   s.DeviceType,
		OS:           s.OS,
		Browser:      s.Browser,
		UserAgent:    s.UserAgent,
		IPAddress:    s.IPAddress,
		Country:      s.Country,
		Region:       s.Region,
		City:         s.City,
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		LastActivity: s.LastActivity,
		CreatedAt:    s.CreatedAt,
	}
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
