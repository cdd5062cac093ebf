package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtsarev/minichat/internal/models"
	"github.com/dtsarev/minichat/internal/repository"
)

type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

const chatColumns = `id, coalesce(name, ''), is_group_chat, last_message_at, created_at`

func scanChat(row pgx.Row) (*models.Chat, error) {
	var ch models.Chat
	err := row.Scan(&ch.ID, &ch.Name, &ch.IsGroupChat, &ch.LastMessageAt, &ch.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChatStore) Create(ctx context.Context, name string, isGroupChat bool) (*models.Chat, error) {
	// Private chats store NULL rather than "" so the partial unique index
	// on group names never sees them.
	query := `
		INSERT INTO chats (name, is_group_chat, created_at)
		VALUES (nullif($1, ''), $2, now())
		RETURNING ` + chatColumns

	ch, err := scanChat(s.pool.QueryRow(ctx, query, name, isGroupChat))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateName
		}
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return ch, nil
}

func (s *ChatStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`

	ch, err := scanChat(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return ch, nil
}

// FindPrivateChatWithUsers matches by membership containment: the chat
// must contain every given user, but may contain others too. This mirrors
// the product's historical lookup semantics and is deliberately not an
// exact-set match.
func (s *ChatStore) FindPrivateChatWithUsers(ctx context.Context, userIDs []uuid.UUID) (*models.Chat, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + chatColumns + ` FROM chats c WHERE NOT c.is_group_chat`)
	args := make([]any, 0, len(userIDs))
	for i, id := range userIDs {
		fmt.Fprintf(&b, ` AND EXISTS (
			SELECT 1 FROM chat_members m
			WHERE m.chat_id = c.id AND m.user_id = $%d)`, i+1)
		args = append(args, id)
	}
	b.WriteString(` ORDER BY c.created_at LIMIT 1`)

	ch, err := scanChat(s.pool.QueryRow(ctx, b.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find private chat: %w", err)
	}
	return ch, nil
}

func (s *ChatStore) AddMember(ctx context.Context, chatID, userID uuid.UUID) error {
	// ON CONFLICT DO NOTHING keeps the join idempotent: a second join of
	// the same user hits the primary key and becomes a no-op.
	query := `
		INSERT INTO chat_members (chat_id, user_id, joined_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id, user_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, chatID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *ChatStore) ListMembers(ctx context.Context, chatID uuid.UUID) ([]models.UserSummary, error) {
	query := `
		SELECT u.id, coalesce(u.nickname, '')
		FROM chat_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = $1
		ORDER BY m.joined_at`

	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.UserSummary, 0)
	for rows.Next() {
		var m models.UserSummary
		if err := rows.Scan(&m.ID, &m.Nickname); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *ChatStore) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_members
			WHERE chat_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, chatID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatWithMembers, error) {
	query := `
		SELECT c.id, coalesce(c.name, ''), c.is_group_chat, c.last_message_at, c.created_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats for user: %w", err)
	}
	defer rows.Close()

	chats := make([]models.ChatWithMembers, 0)
	chatIDs := make([]uuid.UUID, 0)
	for rows.Next() {
		ch, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, models.ChatWithMembers{Chat: *ch})
		chatIDs = append(chatIDs, ch.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	if len(chats) == 0 {
		return chats, nil
	}

	// One member query for all chats instead of one per chat.
	members, err := s.membersByChat(ctx, chatIDs)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		chats[i].Users = members[chats[i].ID]
		if chats[i].Users == nil {
			chats[i].Users = []models.UserSummary{}
		}
	}

	return chats, nil
}

func (s *ChatStore) membersByChat(ctx context.Context, chatIDs []uuid.UUID) (map[uuid.UUID][]models.UserSummary, error) {
	query := `
		SELECT m.chat_id, u.id, coalesce(u.nickname, '')
		FROM chat_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = ANY($1)
		ORDER BY m.joined_at`

	rows, err := s.pool.Query(ctx, query, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("list members for chats: %w", err)
	}
	defer rows.Close()

	members := make(map[uuid.UUID][]models.UserSummary, len(chatIDs))
	for rows.Next() {
		var chatID uuid.UUID
		var m models.UserSummary
		if err := rows.Scan(&chatID, &m.ID, &m.Nickname); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members[chatID] = append(members[chatID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *ChatStore) SearchByName(ctx context.Context, query string) ([]models.ChatRef, error) {
	// Same shape as the nickname search: rank orders, never leaves the
	// query, ties broken by id.
	sql := `
		SELECT id, coalesce(name, '')
		FROM chats
		WHERE to_tsvector('simple', coalesce(name, ''))
		      @@ plainto_tsquery('simple', lower($1))
		ORDER BY ts_rank(
			to_tsvector('simple', coalesce(name, '')),
			plainto_tsquery('simple', lower($1))
		) DESC, id`

	rows, err := s.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("search chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.ChatRef, 0)
	for rows.Next() {
		var c models.ChatRef
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan chat ref: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat refs: %w", err)
	}

	return chats, nil
}
