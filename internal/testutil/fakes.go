// Package testutil provides in-memory implementations of the repository
// interfaces for tests. They reproduce the storage-layer contracts the
// services rely on: uniqueness constraints surfacing as sentinel errors,
// idempotent membership inserts, and nil-for-not-found lookups.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtsarev/minichat/internal/models"
	"github.com/dtsarev/minichat/internal/repository"
)

type FakeUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]models.User
	order []uuid.UUID
}

func NewFakeUsers() *FakeUsers {
	return &FakeUsers{byID: make(map[uuid.UUID]models.User)}
}

var _ repository.UserRepository = (*FakeUsers)(nil)

func (f *FakeUsers) Create(ctx context.Context, googleID, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.GoogleID == googleID || strings.EqualFold(u.Email, email) {
			return nil, repository.ErrDuplicateUser
		}
	}
	u := models.User{
		ID:        uuid.New(),
		GoogleID:  googleID,
		Email:     strings.ToLower(email),
		CreatedAt: time.Now(),
	}
	f.byID[u.ID] = u
	f.order = append(f.order, u.ID)
	return &u, nil
}

func (f *FakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *FakeUsers) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		if u := f.byID[id]; u.GoogleID == googleID {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *FakeUsers) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (f *FakeUsers) UpdateNickname(ctx context.Context, id uuid.UUID, nickname string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	u.Nickname = nickname
	f.byID[id] = u
	return &u, nil
}

func (f *FakeUsers) SearchByNickname(ctx context.Context, query string) ([]models.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.UserSummary, 0)
	for _, id := range f.order {
		u := f.byID[id]
		if u.Nickname != "" && strings.Contains(strings.ToLower(u.Nickname), strings.ToLower(query)) {
			out = append(out, models.UserSummary{ID: u.ID, Nickname: u.Nickname})
		}
	}
	return out, nil
}

// Delete removes a user, for exercising paths where an account vanishes
// between requests.
func (f *FakeUsers) Delete(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

type FakeChats struct {
	mu      sync.Mutex
	users   *FakeUsers
	byID    map[uuid.UUID]models.Chat
	order   []uuid.UUID
	members map[uuid.UUID][]uuid.UUID
}

func NewFakeChats(users *FakeUsers) *FakeChats {
	return &FakeChats{
		users:   users,
		byID:    make(map[uuid.UUID]models.Chat),
		members: make(map[uuid.UUID][]uuid.UUID),
	}
}

var _ repository.ChatRepository = (*FakeChats)(nil)

func (f *FakeChats) Create(ctx context.Context, name string, isGroupChat bool) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if isGroupChat {
		for _, ch := range f.byID {
			if ch.IsGroupChat && strings.EqualFold(ch.Name, name) {
				return nil, repository.ErrDuplicateName
			}
		}
	}
	ch := models.Chat{
		ID:          uuid.New(),
		Name:        name,
		IsGroupChat: isGroupChat,
		CreatedAt:   time.Now(),
	}
	if !isGroupChat {
		ch.Name = ""
	}
	f.byID[ch.ID] = ch
	f.order = append(f.order, ch.ID)
	return &ch, nil
}

func (f *FakeChats) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.byID[id]; ok {
		return &ch, nil
	}
	return nil, nil
}

func (f *FakeChats) FindPrivateChatWithUsers(ctx context.Context, userIDs []uuid.UUID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range f.order {
		ch := f.byID[id]
		if ch.IsGroupChat {
			continue
		}
		if containsAll(f.members[id], userIDs) {
			return &ch, nil
		}
	}
	return nil, nil
}

func containsAll(members, wanted []uuid.UUID) bool {
	for _, w := range wanted {
		found := false
		for _, m := range members {
			if m == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *FakeChats) AddMember(ctx context.Context, chatID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range f.members[chatID] {
		if m == userID {
			return nil
		}
	}
	f.members[chatID] = append(f.members[chatID], userID)
	return nil
}

func (f *FakeChats) ListMembers(ctx context.Context, chatID uuid.UUID) ([]models.UserSummary, error) {
	f.mu.Lock()
	memberIDs := append([]uuid.UUID(nil), f.members[chatID]...)
	f.mu.Unlock()

	out := make([]models.UserSummary, 0, len(memberIDs))
	for _, id := range memberIDs {
		summary := models.UserSummary{ID: id}
		if u, _ := f.users.GetByID(ctx, id); u != nil {
			summary.Nickname = u.Nickname
		}
		out = append(out, summary)
	}
	return out, nil
}

func (f *FakeChats) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[chatID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeChats) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatWithMembers, error) {
	f.mu.Lock()
	ids := make([]uuid.UUID, 0)
	for _, id := range f.order {
		for _, m := range f.members[id] {
			if m == userID {
				ids = append(ids, id)
				break
			}
		}
	}
	chats := make([]models.Chat, 0, len(ids))
	for _, id := range ids {
		chats = append(chats, f.byID[id])
	}
	f.mu.Unlock()

	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chats[i].LastMessageAt, chats[j].LastMessageAt
		switch {
		case a != nil && b != nil:
			return a.After(*b)
		case a != nil:
			return true
		default:
			return false
		}
	})

	out := make([]models.ChatWithMembers, 0, len(chats))
	for _, ch := range chats {
		members, _ := f.ListMembers(ctx, ch.ID)
		out = append(out, models.ChatWithMembers{Chat: ch, Users: members})
	}
	return out, nil
}

func (f *FakeChats) SearchByName(ctx context.Context, query string) ([]models.ChatRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ChatRef, 0)
	for _, id := range f.order {
		ch := f.byID[id]
		if ch.Name != "" && strings.Contains(strings.ToLower(ch.Name), strings.ToLower(query)) {
			out = append(out, models.ChatRef{ID: ch.ID, Name: ch.Name})
		}
	}
	return out, nil
}

// ChatCount reports how many chats exist, for asserting that an
// operation created nothing.
func (f *FakeChats) ChatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

// MemberIDs returns the raw membership list of a chat.
func (f *FakeChats) MemberIDs(chatID uuid.UUID) []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.members[chatID]...)
}

type FakeMessages struct {
	mu     sync.Mutex
	users  *FakeUsers
	chats  *FakeChats
	msgs   []models.Message
	nextID int64

	// Now supplies message timestamps when set; tests use it to pin
	// exact times, including deliberate ties.
	Now func() time.Time
}

func NewFakeMessages(users *FakeUsers, chats *FakeChats) *FakeMessages {
	return &FakeMessages{users: users, chats: chats, nextID: 1}
}

var _ repository.MessageRepository = (*FakeMessages)(nil)

func (f *FakeMessages) Create(ctx context.Context, chatID, authorID uuid.UUID, text string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	msg := models.Message{
		ID:        f.nextID,
		ChatID:    chatID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
	}
	f.nextID++
	f.msgs = append(f.msgs, msg)

	// Same contract as the real store: message insert and chat activity
	// advance together.
	f.chats.mu.Lock()
	if ch, ok := f.chats.byID[chatID]; ok {
		t := msg.CreatedAt
		ch.LastMessageAt = &t
		f.chats.byID[chatID] = ch
	}
	f.chats.mu.Unlock()

	return &msg, nil
}

func (f *FakeMessages) ListPage(ctx context.Context, chatID uuid.UUID, offset, limit int) ([]models.MessageWithAuthor, error) {
	all := f.sortedForChat(ctx, chatID)
	if offset >= len(all) {
		return []models.MessageWithAuthor{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *FakeMessages) ListSince(ctx context.Context, chatID uuid.UUID, since time.Time, limit int) ([]models.MessageWithAuthor, error) {
	all := f.sortedForChat(ctx, chatID)
	out := make([]models.MessageWithAuthor, 0)
	for _, m := range all {
		if m.CreatedAt.Before(since) {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MessageCount reports how many messages exist in a chat.
func (f *FakeMessages) MessageCount(chatID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			n++
		}
	}
	return n
}

func (f *FakeMessages) sortedForChat(ctx context.Context, chatID uuid.UUID) []models.MessageWithAuthor {
	f.mu.Lock()
	msgs := make([]models.Message, 0)
	for _, m := range f.msgs {
		if m.ChatID == chatID {
			msgs = append(msgs, m)
		}
	}
	f.mu.Unlock()

	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
		}
		return msgs[i].ID > msgs[j].ID
	})

	out := make([]models.MessageWithAuthor, 0, len(msgs))
	for _, m := range msgs {
		enriched := models.MessageWithAuthor{Message: m}
		if u, _ := f.users.GetByID(ctx, m.AuthorID); u != nil {
			enriched.Author = models.UserSummary{ID: u.ID, Nickname: u.Nickname}
		}
		out = append(out, enriched)
	}
	return out
}
