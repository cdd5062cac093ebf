package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/middleware"
	"github.com/dtsarev/minichat/internal/service"
)

// UserHandler exposes the current user's profile and user search.
type UserHandler struct {
	identity *service.IdentityService
	logger   *zap.Logger
}

func NewUserHandler(identity *service.IdentityService, logger *zap.Logger) *UserHandler {
	return &UserHandler{identity: identity, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.identity.CurrentUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type setNicknameRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// SetNickname handles PUT /v1/users/me/nickname
func (h *UserHandler) SetNickname(c *gin.Context) {
	var req setNicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fieldRequired(c, "nickname")
		return
	}

	user, err := h.identity.SetNickname(c.Request.Context(), middleware.GetUserID(c), req.Nickname)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Search handles GET /v1/users/search?nickname=
//
// The current user is included in the results when they match; the
// frontend filters if it wants to.
func (h *UserHandler) Search(c *gin.Context) {
	nickname := c.Query("nickname")
	if nickname == "" {
		fieldRequired(c, "nickname")
		return
	}

	users, err := h.identity.SearchByNickname(c.Request.Context(), nickname)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
