package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/relay"
)

type allowAll struct{}

func (allowAll) RequireAccess(ctx context.Context, userID, chatID uuid.UUID) error { return nil }

type denyAll struct{}

func (denyAll) RequireAccess(ctx context.Context, userID, chatID uuid.UUID) error {
	return context.Canceled
}

type recordingNotifier struct {
	newMessage []uuid.UUID
	membership []uuid.UUID
}

func (n *recordingNotifier) AnnounceNewMessage(ctx context.Context, chatID uuid.UUID) {
	n.newMessage = append(n.newMessage, chatID)
}

func (n *recordingNotifier) AnnounceMembershipChanged(ctx context.Context, chatID uuid.UUID) {
	n.membership = append(n.membership, chatID)
}

func newTestClient(h *Hub, guard Access) *Client {
	return NewClient(h, nil, uuid.New(), guard, &recordingNotifier{}, zap.NewNop())
}

func TestJoinRoom_OneRoomPerConnection(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(h, allowAll{})
	roomA, roomB := uuid.New(), uuid.New()

	h.JoinRoom(c, roomA)
	require.Equal(t, 1, h.RoomSize(roomA))

	// Joining another room leaves the first.
	h.JoinRoom(c, roomB)
	require.Equal(t, 0, h.RoomSize(roomA))
	require.Equal(t, 1, h.RoomSize(roomB))

	h.LeaveRoom(c)
	require.Equal(t, 0, h.RoomSize(roomB))

	// Leaving again is a no-op.
	h.LeaveRoom(c)
	require.Equal(t, 0, h.RoomSize(roomB))
}

func TestRun_BroadcastsToRoomOnly(t *testing.T) {
	h := NewHub(zap.NewNop())
	room, otherRoom := uuid.New(), uuid.New()
	member := newTestClient(h, allowAll{})
	other := newTestClient(h, allowAll{})
	h.JoinRoom(member, room)
	h.JoinRoom(other, otherRoom)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan relay.Event, 1)
	go h.Run(ctx, events)

	events <- relay.Event{Kind: relay.KindNewMessage, ChatID: room}

	select {
	case payload := <-member.send:
		var ev ServerEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		require.Equal(t, eventRefreshMessages, ev.Event)
		require.Equal(t, room, ev.Chat)
	case <-time.After(time.Second):
		t.Fatal("room member did not receive the event")
	}

	select {
	case <-other.send:
		t.Fatal("client in another room received the event")
	default:
	}
}

func TestRun_MembershipEvent(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := uuid.New()
	member := newTestClient(h, allowAll{})
	h.JoinRoom(member, room)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan relay.Event, 1)
	go h.Run(ctx, events)

	events <- relay.Event{Kind: relay.KindMembershipChanged, ChatID: room}

	select {
	case payload := <-member.send:
		var ev ServerEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		require.Equal(t, eventRefreshMembers, ev.Event)
	case <-time.After(time.Second):
		t.Fatal("room member did not receive the event")
	}
}

func TestBroadcast_DropsSlowConsumer(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := uuid.New()
	c := newTestClient(h, allowAll{})
	h.JoinRoom(c, room)

	// Nothing drains the send channel, so filling the buffer simulates a
	// stalled reader.
	for i := 0; i < sendBuffer; i++ {
		c.send <- []byte("{}")
	}

	h.broadcast(room, ServerEvent{Event: eventRefreshMessages, Chat: room})
	require.Equal(t, 0, h.RoomSize(room))

	// The channel is closed so the write pump shuts the connection down.
	for range c.send {
	}
}

func TestDroppedClientCannotRejoin(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := uuid.New()
	c := newTestClient(h, allowAll{})
	h.JoinRoom(c, room)

	for i := 0; i < sendBuffer; i++ {
		c.send <- []byte("{}")
	}
	h.broadcast(room, ServerEvent{Event: eventRefreshMessages, Chat: room})
	require.Equal(t, 0, h.RoomSize(room))

	// The reader may still process a queued join after the drop. It must
	// not land the closed client back in a room.
	h.JoinRoom(c, room)
	require.Equal(t, 0, h.RoomSize(room))

	// With the client gone for good, further broadcasts cannot reach its
	// closed channel.
	require.NotPanics(t, func() {
		h.broadcast(room, ServerEvent{Event: eventRefreshMessages, Chat: room})
	})
}

func TestDrop(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := uuid.New()
	c := newTestClient(h, allowAll{})
	h.JoinRoom(c, room)

	h.Drop(c)
	require.Equal(t, 0, h.RoomSize(room))

	// The send channel is closed so the write pump exits immediately.
	_, open := <-c.send
	require.False(t, open)

	// Dropping twice must not double-close.
	require.NotPanics(t, func() { h.Drop(c) })
}

func TestHandle_JoinChecksMembership(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := uuid.New()
	ctx := context.Background()

	denied := newTestClient(h, denyAll{})
	denied.handle(ctx, ClientEvent{Event: eventJoinChat, Chat: room})
	require.Equal(t, 0, h.RoomSize(room))

	allowed := newTestClient(h, allowAll{})
	allowed.handle(ctx, ClientEvent{Event: eventJoinChat, Chat: room})
	require.Equal(t, 1, h.RoomSize(room))

	allowed.handle(ctx, ClientEvent{Event: eventLeaveChat})
	require.Equal(t, 0, h.RoomSize(room))
}

func TestHandle_NewMessageAnnounces(t *testing.T) {
	h := NewHub(zap.NewNop())
	room := uuid.New()
	notifier := &recordingNotifier{}
	c := NewClient(h, nil, uuid.New(), allowAll{}, notifier, zap.NewNop())

	c.handle(context.Background(), ClientEvent{Event: eventNewMessage, Chat: room})
	require.Equal(t, []uuid.UUID{room}, notifier.newMessage)
}
