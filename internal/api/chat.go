package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/middleware"
	"github.com/dtsarev/minichat/internal/service"
)

// ChatHandler exposes chat creation, joining, listing, and search.
type ChatHandler struct {
	chats    *service.ChatService
	notifier service.Notifier
	logger   *zap.Logger
}

func NewChatHandler(chats *service.ChatService, notifier service.Notifier, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, notifier: notifier, logger: logger}
}

type createGroupChatRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateGroup handles POST /v1/chats/group
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req createGroupChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fieldRequired(c, "name")
		return
	}

	chat, err := h.chats.CreateGroupChat(c.Request.Context(), req.Name, middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type createPrivateChatRequest struct {
	User uuid.UUID `json:"user" binding:"required"`
}

// CreatePrivate handles POST /v1/chats/private
//
// Creates the private chat between the caller and the given user, or
// returns the existing one. Passing your own id opens a self-chat.
func (h *ChatHandler) CreatePrivate(c *gin.Context) {
	var req createPrivateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fieldRequired(c, "user")
		return
	}

	chat, err := h.chats.CreateOrReusePrivateChat(c.Request.Context(), middleware.GetUserID(c), req.User)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// Join handles POST /v1/chats/:id/join
func (h *ChatHandler) Join(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fieldRequired(c, "chat")
		return
	}

	chat, err := h.chats.JoinGroupChat(c.Request.Context(), chatID, middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	// Tell the room its member list changed. Best-effort; the join has
	// already committed.
	h.notifier.AnnounceMembershipChanged(context.WithoutCancel(c.Request.Context()), chatID)

	c.JSON(http.StatusOK, chat)
}

// List handles GET /v1/chats — all of the caller's chats, most recently
// active first.
func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chats.ListChatsForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// Search handles GET /v1/chats/search?name=
func (h *ChatHandler) Search(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		fieldRequired(c, "name")
		return
	}

	chats, err := h.chats.SearchByName(c.Request.Context(), name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}
