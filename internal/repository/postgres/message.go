package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dtsarev/minichat/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create appends a message and advances the owning chat's last-activity
// timestamp. Both writes share one transaction so a chat can never report
// activity for a message that was not persisted.
func (s *MessageStore) Create(ctx context.Context, chatID, authorID uuid.UUID, text string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert message: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO messages (chat_id, author_id, text, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, chat_id, author_id, text, created_at`

	var msg models.Message
	err = tx.QueryRow(ctx, insert, chatID, authorID, text).Scan(
		&msg.ID,
		&msg.ChatID,
		&msg.AuthorID,
		&msg.Text,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	touch := `UPDATE chats SET last_message_at = $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, touch, chatID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch chat activity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert message: %w", err)
	}
	return &msg, nil
}

const messageWithAuthorColumns = `
	m.id, m.chat_id, m.author_id, m.text, m.created_at,
	u.id, coalesce(u.nickname, '')`

func (s *MessageStore) ListPage(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]models.MessageWithAuthor, error) {
	query := `
		SELECT ` + messageWithAuthorColumns + `
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.chat_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		OFFSET $2 LIMIT $3`

	rows, err := s.pool.Query(ctx, query, chatID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *MessageStore) ListSince(ctx context.Context, chatID uuid.UUID, since time.Time, limit int) ([]models.MessageWithAuthor, error) {
	// Inclusive bound: two messages can land on the same timestamp at the
	// store's resolution, and >= guarantees neither is dropped.
	query := `
		SELECT ` + messageWithAuthorColumns + `
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.chat_id = $1 AND m.created_at >= $2
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, chatID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list new messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]models.MessageWithAuthor, error) {
	messages := make([]models.MessageWithAuthor, 0)
	for rows.Next() {
		var msg models.MessageWithAuthor
		err := rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.AuthorID,
			&msg.Text,
			&msg.CreatedAt,
			&msg.Author.ID,
			&msg.Author.Nickname,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
