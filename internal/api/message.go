package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/middleware"
	"github.com/dtsarev/minichat/internal/service"
)

// MessageHandler exposes sending and reading chat history. Every route
// here checks the membership guard before touching the log; a denied
// request performs no read or write at all.
type MessageHandler struct {
	messages *service.MessageService
	chats    *service.ChatService
	guard    *service.AccessGuard
	notifier service.Notifier
	logger   *zap.Logger
}

func NewMessageHandler(
	messages *service.MessageService,
	chats *service.ChatService,
	guard *service.AccessGuard,
	notifier service.Notifier,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		chats:    chats,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *MessageHandler) chatIDParam(c *gin.Context) (uuid.UUID, bool) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fieldRequired(c, "chat")
		return uuid.Nil, false
	}
	return chatID, true
}

type sendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// Send handles POST /v1/chats/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	chatID, ok := h.chatIDParam(c)
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.guard.RequireAccess(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fieldRequired(c, "message")
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), chatID, userID, req.Message)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	// Announce after the send committed; the relay owes us nothing, so
	// the response does not wait on it.
	h.notifier.AnnounceNewMessage(context.WithoutCancel(c.Request.Context()), chatID)

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// List handles GET /v1/chats/:id/messages?page=
func (h *MessageHandler) List(c *gin.Context) {
	chatID, ok := h.chatIDParam(c)
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.guard.RequireAccess(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	page := 1
	if p := c.Query("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			fieldRequired(c, "page")
			return
		}
		page = parsed
	}

	result, err := h.messages.ListPaginated(c.Request.Context(), chatID, page)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListNew handles GET /v1/chats/:id/messages/new?since=
//
// since is RFC3339; the bound is inclusive. This is the gap-free
// incremental sync clients poll between socket notifications.
func (h *MessageHandler) ListNew(c *gin.Context) {
	chatID, ok := h.chatIDParam(c)
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.guard.RequireAccess(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	raw := c.Query("since")
	if raw == "" {
		fieldRequired(c, "date")
		return
	}
	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		fieldRequired(c, "date")
		return
	}

	messages, err := h.messages.ListSince(c.Request.Context(), chatID, since)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// GetChat handles GET /v1/chats/:id — the chat with its member summaries
// plus the first page of messages, what a client needs to open a chat.
func (h *MessageHandler) GetChat(c *gin.Context) {
	chatID, ok := h.chatIDParam(c)
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.guard.RequireAccess(c.Request.Context(), userID, chatID); err != nil {
		writeError(c, h.logger, err)
		return
	}

	chat, err := h.chats.ChatWithMembers(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	page, err := h.messages.ListPaginated(c.Request.Context(), chatID, 1)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat":     chat,
		"messages": page.Messages,
	})
}
