package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/port"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/config"
	appLogger "github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/logger"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/usecase"
)

const (
	identityKey       = "identity"
	presentedTokenKey = "identity.token"
)

type identityContextKey struct{}

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// TokenValidator resolves a raw access token to its active user, or nil.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (*domain.User, error)
}

// SessionReconciler attaches a request to a session row.
type SessionReconciler interface {
	Reconcile(ctx context.Context, req usecase.ReconcileRequest) (*usecase.ReconcileResult, error)
}

// IdentityResolver works out who the visitor is and attaches a domain.Identity
// to the request. Guests are tracked through a session row; signed-in users
// are exposed by user id only.
type IdentityResolver struct {
	tokens       TokenValidator
	sessions     SessionReconciler
	impersonator port.Impersonator
	settings     config.IdentitySettings
	logger       *zap.Logger

	tokenSources       []valueExtractor
	sessionSources     []valueExtractor
	impersonateSources []valueExtractor
}

// NewIdentityResolver builds the resolver and its ordered extractors from settings.
func NewIdentityResolver(tokens TokenValidator, sessions SessionReconciler, settings config.IdentitySettings, logger *zap.Logger) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &IdentityResolver{
		tokens:   tokens,
		sessions: sessions,
		settings: settings,
		logger:   logger,
	}

	if settings.TokenCookie != "" {
		r.tokenSources = append(r.tokenSources, cookieValue(settings.TokenCookie))
	}
	r.tokenSources = append(r.tokenSources, bearerValue)
	if settings.TokenQueryParam != "" {
		r.tokenSources = append(r.tokenSources, queryValue(settings.TokenQueryParam))
	}
	if settings.TokenHeader != "" {
		r.tokenSources = append(r.tokenSources, headerValue(settings.TokenHeader))
	}

	if settings.SessionField != "" {
		r.sessionSources = append(r.sessionSources, bodyValue(settings.SessionField), queryValue(settings.SessionField))
	}
	if settings.SessionHeader != "" {
		r.sessionSources = append(r.sessionSources, headerValue(settings.SessionHeader))
	}
	if settings.SessionCookie != "" {
		r.sessionSources = append(r.sessionSources, cookieValue(settings.SessionCookie))
	}

	if settings.ImpersonateHeader != "" {
		r.impersonateSources = append(r.impersonateSources, headerValue(settings.ImpersonateHeader))
	}
	if settings.ImpersonateField != "" {
		r.impersonateSources = append(r.impersonateSources, bodyValue(settings.ImpersonateField))
	}

	return r
}

// WithImpersonator enables admin impersonation.
func (r *IdentityResolver) WithImpersonator(impersonator port.Impersonator) *IdentityResolver {
	r.impersonator = impersonator
	return r
}

// Resolve attaches an identity and lets guests and anonymous visitors through.
func (r *IdentityResolver) Resolve() gin.HandlerFunc {
	return r.handler(false)
}

// RequireUser attaches an identity and rejects requests without a valid token.
func (r *IdentityResolver) RequireUser() gin.HandlerFunc {
	return r.handler(true)
}

// RequireAdmin must run after Resolve or RequireUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := GetIdentity(c)
		switch {
		case !identity.IsAuthenticated():
			abortWithError(c, http.StatusUnauthorized, "authentication required")
		case !identity.IsAdmin():
			abortWithError(c, http.StatusForbidden, "insufficient permissions")
		default:
			c.Next()
		}
	}
}

func (r *IdentityResolver) handler(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, resolved := c.Get(identityKey); resolved {
			if required && !GetIdentity(c).IsAuthenticated() {
				abortWithError(c, http.StatusUnauthorized, "authentication required")
				return
			}
			c.Next()
			return
		}

		ctx := c.Request.Context()
		rawToken := firstValue(c, r.tokenSources)

		if target := firstValue(c, r.impersonateSources); target != "" && r.impersonator != nil {
			identity, err := r.impersonator.Impersonate(ctx, port.ImpersonationRequest{
				TargetUserID: target,
				CallerToken:  rawToken,
			})
			if err != nil {
				r.abortImpersonation(c, err)
				return
			}
			r.expose(c, identity)
			c.Next()
			return
		}

		user, err := r.tokens.Validate(ctx, rawToken)
		if err != nil {
			appLogger.WithContext(ctx).Error("token validation failed", zap.Error(err))
			abortWithError(c, http.StatusServiceUnavailable, "identity resolution unavailable")
			return
		}
		if user == nil && required {
			abortWithError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if user != nil {
			c.Set(presentedTokenKey, rawToken)
		}

		if (user != nil && user.IsAdmin()) || r.isAdminPath(c.Request.URL.Path) {
			identity := domain.Identity{}
			if user != nil {
				identity = domain.UserIdentity(*user)
			}
			r.expose(c, identity)
			c.Next()
			return
		}

		req := usecase.ReconcileRequest{
			CandidateSessionID: firstValue(c, r.sessionSources),
			IPAddress:          c.ClientIP(),
			UserAgent:          c.Request.UserAgent(),
		}
		if user != nil {
			req.UserID = user.ID
		}

		result, err := r.sessions.Reconcile(ctx, req)
		if err != nil {
			appLogger.WithContext(ctx).Error("session reconciliation failed", zap.Error(err))
			abortWithError(c, http.StatusServiceUnavailable, "identity resolution unavailable")
			return
		}

		if user != nil {
			r.expose(c, domain.UserIdentity(*user))
			c.Next()
			return
		}

		sessionID := result.Session.SessionID
		r.expose(c, domain.GuestIdentity(sessionID))
		if r.settings.SessionHeader != "" {
			c.Header(r.settings.SessionHeader, sessionID)
		}
		c.Next()
	}
}

func (r *IdentityResolver) abortImpersonation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrImpersonationForbidden):
		abortWithError(c, http.StatusForbidden, "impersonation not allowed")
	case errors.Is(err, usecase.ErrImpersonationTargetNotFound):
		abortWithError(c, http.StatusNotFound, "impersonation target not found")
	default:
		r.logger.Error("impersonation failed", zap.Error(err))
		abortWithError(c, http.StatusServiceUnavailable, "identity resolution unavailable")
	}
}

func (r *IdentityResolver) isAdminPath(path string) bool {
	for _, prefix := range r.settings.AdminPathPrefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func (r *IdentityResolver) expose(c *gin.Context, identity domain.Identity) {
	c.Set(identityKey, identity)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), identityContextKey{}, identity))

	reqCtx := GetRequestContext(c)
	reqCtx.UserID = identity.UserID
	reqCtx.SessionID = identity.SessionID
}

// GetIdentity returns the identity attached by the resolver, or the anonymous identity.
func GetIdentity(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.Identity{}
}

// PresentedToken returns the raw token that authenticated the request.
// Impersonated requests carry none.
func PresentedToken(c *gin.Context) string {
	return c.GetString(presentedTokenKey)
}

// IdentityFromContext returns the identity carried by a request context.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	if ctx == nil {
		return domain.Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(domain.Identity)
	return identity, ok
}

func visitorKind(identity domain.Identity) string {
	switch {
	case identity.IsAuthenticated():
		return "user"
	case identity.IsGuest():
		return "guest"
	default:
		return "anonymous"
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message, TraceID: GetTraceID(c)})
}
