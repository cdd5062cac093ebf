package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/models"
	"github.com/dtsarev/minichat/internal/repository"
)

// PageSize is the fixed message page size used by both paginated listing
// and incremental sync.
const PageSize = 10

// MessagePage is one block of a chat's history, newest first.
type MessagePage struct {
	Messages    []models.MessageWithAuthor `json:"messages"`
	HasNextPage bool                       `json:"has_next_page"`
}

// MessageService is the append-only message log. Access control happens
// before this layer: callers go through the AccessGuard first, and Send
// assumes the author is already known to be a member.
type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	logger   *zap.Logger
}

func NewMessageService(messages repository.MessageRepository, users repository.UserRepository, logger *zap.Logger) *MessageService {
	return &MessageService{messages: messages, users: users, logger: logger}
}

// Send appends a message and returns it with the author summary attached.
// Notifying connected clients is the caller's concern, after Send returns.
func (s *MessageService) Send(ctx context.Context, chatID, authorID uuid.UUID, text string) (*models.MessageWithAuthor, error) {
	if text == "" {
		return nil, errFieldRequired("message")
	}

	msg, err := s.messages.Create(ctx, chatID, authorID, text)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("resolve author: %w", err)
	}
	enriched := &models.MessageWithAuthor{Message: *msg}
	if author != nil {
		enriched.Author = models.UserSummary{ID: author.ID, Nickname: author.Nickname}
	}
	return enriched, nil
}

// ListPaginated returns the page-th block of messages, newest first.
// Page numbers start at 1. HasNextPage comes from fetching one record
// past the page size and discarding it, never from a count query.
func (s *MessageService) ListPaginated(ctx context.Context, chatID uuid.UUID, page int) (*MessagePage, error) {
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * PageSize
	messages, err := s.messages.ListPage(ctx, chatID, offset, PageSize+1)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	hasNext := len(messages) > PageSize
	if hasNext {
		messages = messages[:PageSize]
	}
	return &MessagePage{Messages: messages, HasNextPage: hasNext}, nil
}

// ListSince returns messages created at or after since, newest first,
// capped at one page. The bound is inclusive so a message sharing its
// timestamp with the client's last-seen one is never dropped; clients
// re-poll, so the cap never loses data either.
func (s *MessageService) ListSince(ctx context.Context, chatID uuid.UUID, since time.Time) ([]models.MessageWithAuthor, error) {
	messages, err := s.messages.ListSince(ctx, chatID, since, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list new messages: %w", err)
	}
	return messages, nil
}
