package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dtsarev/minichat/internal/models"
)

// Sentinel errors surfaced by stores when a storage-level constraint
// fires. The service layer translates them into domain errors; everything
// else coming out of a store is treated as a backend failure.
var (
	// ErrDuplicateName means a unique index on a chat name rejected an
	// insert. The insert itself failed, so no partial state exists.
	ErrDuplicateName = errors.New("chat name already taken")

	// ErrDuplicateUser means the provider-id or email uniqueness
	// constraint rejected a user insert — a concurrent login won the
	// race and the row exists. Callers re-read instead of failing.
	ErrDuplicateUser = errors.New("user already exists")
)

// Stores return (nil, nil) when a looked-up entity does not exist; the
// service layer decides whether that is an error.

// UserRepository handles account persistence.
type UserRepository interface {
	// Create inserts a user with nickname unset. Returns ErrDuplicateUser
	// when the provider id or email is already taken.
	Create(ctx context.Context, googleID, email string) (*models.User, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// GetByIDs returns the users that exist among ids, in no particular
	// order. Missing ids are simply absent from the result.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)

	// UpdateNickname sets the nickname and returns the fresh row, or
	// (nil, nil) if the user no longer exists.
	UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) (*models.User, error)

	// SearchByNickname is a case-insensitive relevance-ranked search.
	// Only id and nickname are selected; the rank never leaves the query.
	SearchByNickname(ctx context.Context, query string) ([]models.UserSummary, error)
}

// ChatRepository owns chat entities and the canonical membership relation.
type ChatRepository interface {
	// Create inserts a chat. Group chats must carry a name; the unique
	// name index reports collisions as ErrDuplicateName.
	Create(ctx context.Context, name string, isGroupChat bool) (*models.Chat, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)

	// FindPrivateChatWithUsers returns a non-group chat whose membership
	// contains every given user id (containment, not exact-set equality),
	// or (nil, nil) when none exists.
	FindPrivateChatWithUsers(ctx context.Context, userIDs []uuid.UUID) (*models.Chat, error)

	// AddMember is an idempotent set-insert: adding an existing member is
	// a no-op, not an error.
	AddMember(ctx context.Context, chatID, userID uuid.UUID) error

	// ListMembers resolves each member to an id+nickname summary.
	ListMembers(ctx context.Context, chatID uuid.UUID) ([]models.UserSummary, error)

	// IsMember is the access check: does this chat have this user among
	// its members. Queried against the canonical relation, never a
	// denormalized copy.
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)

	// ListForUser returns all chats the user belongs to, most recently
	// active first, members enriched.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatWithMembers, error)

	// SearchByName is a case-insensitive relevance-ranked search over
	// chat names. Only id and name are selected.
	SearchByName(ctx context.Context, query string) ([]models.ChatRef, error)
}

// MessageRepository is the append-only per-chat message log.
type MessageRepository interface {
	// Create persists a message and advances the chat's last-activity
	// timestamp in the same transaction.
	Create(ctx context.Context, chatID, authorID uuid.UUID, text string) (*models.Message, error)

	// ListPage returns up to limit messages ordered by created_at
	// descending, skipping offset. Authors come enriched.
	ListPage(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]models.MessageWithAuthor, error)

	// ListSince returns messages with created_at >= since, newest first,
	// capped at limit. The bound is inclusive: two messages can share a
	// timestamp at the store's resolution, and an exclusive bound would
	// silently drop one of them.
	ListSince(ctx context.Context, chatID uuid.UUID, since time.Time, limit int) ([]models.MessageWithAuthor, error)
}
