package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/models"
	"github.com/dtsarev/minichat/internal/repository"
)

// ChatService creates, deduplicates, and enriches chats, and owns all
// membership mutation. Membership only ever grows: there is no leave or
// remove operation.
type ChatService struct {
	chats  repository.ChatRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func NewChatService(chats repository.ChatRepository, users repository.UserRepository, logger *zap.Logger) *ChatService {
	return &ChatService{chats: chats, users: users, logger: logger}
}

// CreateGroupChat creates a named group chat and joins the creator. Name
// uniqueness is enforced by the storage constraint on the insert itself,
// so a collision fails before any membership is written: the loser leaves
// no orphan chat and no partial state.
func (s *ChatService) CreateGroupChat(ctx context.Context, name string, creatorID uuid.UUID) (*models.Chat, error) {
	if name == "" {
		return nil, errFieldRequired("name")
	}

	chat, err := s.chats.Create(ctx, name, true)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, errDuplicateGroupName()
		}
		return nil, fmt.Errorf("create group chat: %w", err)
	}

	if err := s.chats.AddMember(ctx, chat.ID, creatorID); err != nil {
		// The chat exists but the creator is not in it. Do not hide this:
		// a silent success here would strand an unreachable chat.
		return nil, fmt.Errorf("join creator to chat %s: %w", chat.ID, err)
	}

	return chat, nil
}

// CreateOrReusePrivateChat returns the private chat between the current
// user and the other user, creating it on first use. Passing your own id
// produces a self-chat with a single member.
//
// Lookup is by membership containment, not exact-set equality: a private
// chat that contains both users matches even if it also contains a third.
// Known behavior, kept on purpose. Two concurrent first calls for the
// same pair can also both create a chat; the race is accepted and
// documented rather than locked away.
func (s *ChatService) CreateOrReusePrivateChat(ctx context.Context, currentUserID, otherUserID uuid.UUID) (*models.Chat, error) {
	userIDs := []uuid.UUID{currentUserID}
	if otherUserID != currentUserID {
		userIDs = append(userIDs, otherUserID)
	}

	chat, err := s.chats.FindPrivateChatWithUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("find private chat: %w", err)
	}
	if chat != nil {
		// Reuse is side-effect free: no new join, nothing touched.
		return chat, nil
	}

	found, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve chat users: %w", err)
	}
	if len(found) < len(userIDs) {
		return nil, errUnknownUser()
	}

	chat, err = s.chats.Create(ctx, "", false)
	if err != nil {
		return nil, fmt.Errorf("create private chat: %w", err)
	}
	if err := s.joinUsers(ctx, chat.ID, userIDs); err != nil {
		return nil, err
	}

	return chat, nil
}

// JoinGroupChat adds the user to a group chat. Joining twice is a no-op
// that still succeeds; joining a private chat is disallowed.
func (s *ChatService) JoinGroupChat(ctx context.Context, chatID, userID uuid.UUID) (*models.ChatWithMembers, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, errChatNotFound()
	}
	if !chat.IsGroupChat {
		return nil, errNotGroupChat()
	}

	if err := s.chats.AddMember(ctx, chatID, userID); err != nil {
		return nil, fmt.Errorf("join chat: %w", err)
	}

	return s.withMembers(ctx, chat)
}

// ChatWithMembers loads a chat and resolves every member to an
// id+nickname summary.
func (s *ChatService) ChatWithMembers(ctx context.Context, chatID uuid.UUID) (*models.ChatWithMembers, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, errChatNotFound()
	}
	return s.withMembers(ctx, chat)
}

// ListChatsForUser returns the user's chats, most recently active first.
func (s *ChatService) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatWithMembers, error) {
	chats, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats for user: %w", err)
	}
	return chats, nil
}

// SearchByName returns id+name pairs ranked by relevance.
func (s *ChatService) SearchByName(ctx context.Context, query string) ([]models.ChatRef, error) {
	if query == "" {
		return nil, errFieldRequired("name")
	}
	chats, err := s.chats.SearchByName(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search chats: %w", err)
	}
	return chats, nil
}

// joinUsers adds each user in turn. Sequential on purpose: each join is
// an idempotent set-insert against the same chat, and running them one
// after another keeps the final state cumulative without lost updates.
func (s *ChatService) joinUsers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	for _, userID := range userIDs {
		if err := s.chats.AddMember(ctx, chatID, userID); err != nil {
			return fmt.Errorf("join user %s to chat %s: %w", userID, chatID, err)
		}
	}
	return nil
}

func (s *ChatService) withMembers(ctx context.Context, chat *models.Chat) (*models.ChatWithMembers, error) {
	members, err := s.chats.ListMembers(ctx, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &models.ChatWithMembers{Chat: *chat, Users: members}, nil
}
