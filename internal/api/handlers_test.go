package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/api"
	"github.com/dtsarev/minichat/internal/auth"
	"github.com/dtsarev/minichat/internal/middleware"
	"github.com/dtsarev/minichat/internal/models"
	"github.com/dtsarev/minichat/internal/service"
	"github.com/dtsarev/minichat/internal/testutil"
)

const testSecret = "test-secret"

type apiFixture struct {
	users    *testutil.FakeUsers
	chats    *testutil.FakeChats
	messages *testutil.FakeMessages
	chatSvc  *service.ChatService
	msgSvc   *service.MessageService
	router   *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := testutil.NewFakeUsers()
	chats := testutil.NewFakeChats(users)
	messages := testutil.NewFakeMessages(users, chats)

	logger := zap.NewNop()
	identity := service.NewIdentityService(users, logger)
	chatSvc := service.NewChatService(chats, users, logger)
	msgSvc := service.NewMessageService(messages, users, logger)
	guard := service.NewAccessGuard(chats)
	notifier := service.NopNotifier{}

	userHandler := api.NewUserHandler(identity, logger)
	chatHandler := api.NewChatHandler(chatSvc, notifier, logger)
	messageHandler := api.NewMessageHandler(msgSvc, chatSvc, guard, notifier, logger)

	router := gin.New()
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(testSecret))

	v1.GET("/users/me", userHandler.GetMe)
	v1.PUT("/users/me/nickname", userHandler.SetNickname)
	v1.GET("/users/search", userHandler.Search)

	v1.GET("/chats", chatHandler.List)
	v1.GET("/chats/search", chatHandler.Search)
	v1.POST("/chats/group", chatHandler.CreateGroup)
	v1.POST("/chats/private", chatHandler.CreatePrivate)
	v1.POST("/chats/:id/join", chatHandler.Join)

	v1.GET("/chats/:id", messageHandler.GetChat)
	v1.GET("/chats/:id/messages", messageHandler.List)
	v1.GET("/chats/:id/messages/new", messageHandler.ListNew)
	v1.POST("/chats/:id/messages", messageHandler.Send)

	return &apiFixture{
		users:    users,
		chats:    chats,
		messages: messages,
		chatSvc:  chatSvc,
		msgSvc:   msgSvc,
		router:   router,
	}
}

func (f *apiFixture) addUser(t *testing.T, nickname string) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), "google-"+nickname, nickname+"@example.com")
	require.NoError(t, err)
	u, err = f.users.UpdateNickname(context.Background(), u.ID, nickname)
	require.NoError(t, err)
	return u
}

func (f *apiFixture) do(t *testing.T, user *models.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, err := auth.GenerateToken(user.ID, user.Email, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Errors
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, nil, http.MethodGet, "/v1/chats", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetMe(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.addUser(t, "alice")

	rec := f.do(t, alice, http.MethodGet, "/v1/users/me", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, alice.ID, got.ID)
	require.Equal(t, "alice", got.Nickname)
}

func TestSetNickname_MissingBody(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.addUser(t, "alice")

	rec := f.do(t, alice, http.MethodPut, "/v1/users/me/nickname", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "This field is required", decodeErrors(t, rec)["nickname"])
}

func TestCreateGroupChat_DuplicateNameConflict(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	rec := f.do(t, alice, http.MethodPost, "/v1/chats/group", `{"name":"gophers"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, bob, http.MethodPost, "/v1/chats/group", `{"name":"gophers"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Group chat with this name already exists", decodeErrors(t, rec)["name"])
}

func TestCreatePrivateChat_UnknownUser(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.addUser(t, "alice")

	body := fmt.Sprintf(`{"user":%q}`, uuid.New())
	rec := f.do(t, alice, http.MethodPost, "/v1/chats/private", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "This user does not exist", decodeErrors(t, rec)["user"])
}

func TestJoin_PrivateChatUnprocessable(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")

	chat, err := f.chatSvc.CreateOrReusePrivateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	rec := f.do(t, carol, http.MethodPost, "/v1/chats/"+chat.ID.String()+"/join", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Unfortunately, you can not join private chat", decodeErrors(t, rec)["chat"])
}

func TestJoin_UnknownChatUnprocessable(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.addUser(t, "alice")

	rec := f.do(t, alice, http.MethodPost, "/v1/chats/"+uuid.NewString()+"/join", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "Group chat with this id does not exists", decodeErrors(t, rec)["chat"])
}

func TestSendMessage_NonMemberForbidden(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	mallory := f.addUser(t, "mallory")

	chat, err := f.chatSvc.CreateGroupChat(ctx, "gophers", alice.ID)
	require.NoError(t, err)

	rec := f.do(t, mallory, http.MethodPost, "/v1/chats/"+chat.ID.String()+"/messages", `{"message":"hi"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Unfortunately you can not access this chat", decodeErrors(t, rec)["chat"])

	// The denied request wrote nothing.
	require.Zero(t, f.messages.MessageCount(chat.ID))
}

func TestSendMessage(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")

	chat, err := f.chatSvc.CreateGroupChat(ctx, "gophers", alice.ID)
	require.NoError(t, err)

	rec := f.do(t, alice, http.MethodPost, "/v1/chats/"+chat.ID.String()+"/messages", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message models.MessageWithAuthor `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "hello", body.Message.Text)
	require.Equal(t, "alice", body.Message.Author.Nickname)
}

func TestListMessages_Pagination(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")

	chat, err := f.chatSvc.CreateGroupChat(ctx, "gophers", alice.ID)
	require.NoError(t, err)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	i := 0
	f.messages.Now = func() time.Time {
		ts := base.Add(time.Duration(i) * time.Second)
		i++
		return ts
	}
	for k := 1; k <= 12; k++ {
		_, err := f.msgSvc.Send(ctx, chat.ID, alice.ID, fmt.Sprintf("msg %d", k))
		require.NoError(t, err)
	}
	f.messages.Now = nil

	rec := f.do(t, alice, http.MethodGet, "/v1/chats/"+chat.ID.String()+"/messages?page=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Messages    []models.MessageWithAuthor `json:"messages"`
		HasNextPage bool                       `json:"has_next_page"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Messages, 10)
	require.True(t, page.HasNextPage)
	require.Equal(t, "msg 12", page.Messages[0].Text)

	rec = f.do(t, alice, http.MethodGet, "/v1/chats/"+chat.ID.String()+"/messages?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Messages, 2)
	require.False(t, page.HasNextPage)

	rec = f.do(t, alice, http.MethodGet, "/v1/chats/"+chat.ID.String()+"/messages?page=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListNew_RequiresSince(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")

	chat, err := f.chatSvc.CreateGroupChat(ctx, "gophers", alice.ID)
	require.NoError(t, err)

	rec := f.do(t, alice, http.MethodGet, "/v1/chats/"+chat.ID.String()+"/messages/new", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "This field is required", decodeErrors(t, rec)["date"])

	since := time.Now().UTC().Format(time.RFC3339Nano)
	rec = f.do(t, alice, http.MethodGet, "/v1/chats/"+chat.ID.String()+"/messages/new?since="+since, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetChat(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")

	chat, err := f.chatSvc.CreateGroupChat(ctx, "gophers", alice.ID)
	require.NoError(t, err)
	_, err = f.msgSvc.Send(ctx, chat.ID, alice.ID, "hello")
	require.NoError(t, err)

	rec := f.do(t, alice, http.MethodGet, "/v1/chats/"+chat.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chat     models.ChatWithMembers     `json:"chat"`
		Messages []models.MessageWithAuthor `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, chat.ID, body.Chat.ID)
	require.Len(t, body.Chat.Users, 1)
	require.Len(t, body.Messages, 1)
}

func TestSearchChats(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")

	_, err := f.chatSvc.CreateGroupChat(ctx, "weekend hikers", alice.ID)
	require.NoError(t, err)

	rec := f.do(t, alice, http.MethodGet, "/v1/chats/search?name=hikers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chats []models.ChatRef `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Chats, 1)

	rec = f.do(t, alice, http.MethodGet, "/v1/chats/search", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchUsers(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.addUser(t, "alice")
	f.addUser(t, "alicia")
	f.addUser(t, "bob")

	rec := f.do(t, alice, http.MethodGet, "/v1/users/search?nickname=ali", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Users []models.UserSummary `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
}
