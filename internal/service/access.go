package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtsarev/minichat/internal/repository"
)

// AccessGuard decides whether a user may read or write a chat. Both the
// REST handlers and the WebSocket layer consult it before touching
// messages.
type AccessGuard struct {
	chats repository.ChatRepository
}

func NewAccessGuard(chats repository.ChatRepository) *AccessGuard {
	return &AccessGuard{chats: chats}
}

// HasAccessToChat reports whether the user is a member of the chat. The
// check runs against the canonical membership relation, never a
// denormalized copy, so it cannot be stale.
func (g *AccessGuard) HasAccessToChat(ctx context.Context, userID, chatID uuid.UUID) (bool, error) {
	ok, err := g.chats.IsMember(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("check chat access: %w", err)
	}
	return ok, nil
}

// RequireAccess is HasAccessToChat as an error: callers that just want to
// bail get the AccessDenied domain error directly.
func (g *AccessGuard) RequireAccess(ctx context.Context, userID, chatID uuid.UUID) error {
	ok, err := g.HasAccessToChat(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return errAccessDenied()
	}
	return nil
}
