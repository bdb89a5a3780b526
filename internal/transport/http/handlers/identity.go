package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/NayakVandana/ecommerce-v1-sub003/internal/transport/http/middleware"
	"github.com/NayakVandana/ecommerce-v1-sub003/internal/usecase"
)

// IdentityHandler reports resolved identities and, for admins, stored sessions.
type IdentityHandler struct {
	sessions *usecase.SessionService
}

func NewIdentityHandler(sessions *usecase.SessionService) *IdentityHandler {
	return &IdentityHandler{sessions: sessions}
}

// Current godoc
// @Summary Resolved visitor identity
// @Description Returns the user id for signed-in visitors or the session id for guests, never both.
// @Tags Identity
// @Produce json
// @Success 200 {object} IdentityResponse
// @Router /api/v1/identity [get]
func (h *IdentityHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, newIdentityResponse(middleware.GetIdentity(c)))
}

// Session godoc
// @Summary Look up a session row
// @Tags Admin
// @Produce json
// @Param session_id path string true "Session identifier"
// @Success 200 {object} SessionResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/admin/sessions/{session_id} [get]
func (h *IdentityHandler) Session(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
			return
		}
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to load session")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(*session))
}
