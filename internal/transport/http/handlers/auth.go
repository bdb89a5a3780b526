package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/core/domain"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/infra/config"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/middleware"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/usecase"
)

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
	{Err: usecase.ErrInvalidChannel, Status: http.StatusBadRequest, Message: "unsupported channel"},
	{Err: usecase.ErrTokenCollision, Status: http.StatusServiceUnavailable, Message: "could not issue token, retry"},
}

// AuthHandler exposes token login and logout endpoints.
type AuthHandler struct {
	auth     *usecase.AuthService
	settings config.IdentitySettings
}

// NewAuthHandler constructs AuthHandler. settings drive the web token cookie.
func NewAuthHandler(auth *usecase.AuthService, settings config.IdentitySettings) *AuthHandler {
	return &AuthHandler{auth: auth, settings: settings}
}

// RegisterRoutes binds authentication routes. loginMiddlewares run ahead of login,
// requireUser guards the logout endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireUser gin.HandlerFunc, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login", append(chain, h.login)...)
	r.POST("/logout", requireUser, h.logout)
	r.POST("/logout-all", requireUser, h.logoutAll)
}

// Login godoc
// @Summary Exchange credentials for an access token
// @Description Web logins also receive the token as an HttpOnly cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, validationMessage(err)))
		return
	}

	channel, _ := domain.ParseChannel(req.Channel)

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		Channel:  channel,
		Device:   req.Device,
	})
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	if result.Channel == domain.ChannelWeb && h.settings.TokenCookie != "" {
		h.setTokenCookie(c, result.Token, int(h.settings.CookieMaxAge.Seconds()))
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		Channel:     result.Channel,
		User:        newUserSummary(result.User),
	})
}

// Logout godoc
// @Summary Revoke the presented access token
// @Tags Authentication
// @Produce json
// @Success 200 {object} LogoutResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	if middleware.GetIdentity(c).IsImpersonated() {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "logout is not available while impersonating"))
		return
	}

	revoked, err := h.auth.Logout(c.Request.Context(), middleware.PresentedToken(c))
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "logout failed")
		return
	}

	if h.settings.TokenCookie != "" {
		h.setTokenCookie(c, "", -1)
	}
	c.JSON(http.StatusOK, LogoutResponse{Revoked: revoked})
}

// LogoutAll godoc
// @Summary Revoke every access token of the current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} LogoutResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/logout-all [post]
func (h *AuthHandler) logoutAll(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity.IsImpersonated() {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "logout is not available while impersonating"))
		return
	}

	revoked, err := h.auth.LogoutEverywhere(c.Request.Context(), identity.UserID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "logout failed")
		return
	}

	if h.settings.TokenCookie != "" {
		h.setTokenCookie(c, "", -1)
	}
	c.JSON(http.StatusOK, LogoutResponse{Revoked: revoked})
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.settings.TokenCookie, value, maxAge, "/", "", h.settings.CookieSecure, true)
}
