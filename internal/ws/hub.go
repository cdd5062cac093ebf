package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/relay"
)

// Server-to-client event names. Clients react by re-fetching through the
// regular read APIs; no message content travels over the socket.
const (
	eventRefreshMessages = "refresh messages"
	eventRefreshMembers  = "refresh members"
)

// ServerEvent is what connected clients receive.
type ServerEvent struct {
	Event string    `json:"event"`
	Chat  uuid.UUID `json:"chat"`
}

// Hub tracks which connection currently watches which chat room and fans
// relay announcements out to them. Room membership here is connection
// state, not chat membership: dropping a socket leaves its room, the
// chat's member list is untouched.
type Hub struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]map[*Client]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
		logger: logger,
	}
}

// Run forwards relay events to room members until ctx ends. Meant to be
// run once, as a goroutine, next to the HTTP server.
func (h *Hub) Run(ctx context.Context, events <-chan relay.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case relay.KindNewMessage:
				h.broadcast(ev.ChatID, ServerEvent{Event: eventRefreshMessages, Chat: ev.ChatID})
			case relay.KindMembershipChanged:
				h.broadcast(ev.ChatID, ServerEvent{Event: eventRefreshMembers, Chat: ev.ChatID})
			default:
				h.logger.Warn("unknown relay event kind", zap.String("kind", ev.Kind))
			}
		}
	}
}

// JoinRoom subscribes the client to a chat room. A connection watches at
// most one room: joining leaves the previous room first. A dropped
// client cannot rejoin; its send channel is closed and a queued join
// event processed after the drop must not resurrect it.
func (h *Hub) JoinRoom(c *Client, chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.dropped {
		return
	}

	h.leaveLocked(c)

	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[chatID] = room
	}
	room[c] = struct{}{}
	c.room = chatID
}

// LeaveRoom unsubscribes the client from its current room, if any.
func (h *Hub) LeaveRoom(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

// Drop removes the client from its room and closes its send channel so
// the write pump exits. Every teardown path funnels through here: the
// dropped flag makes the close happen exactly once, whoever calls first.
func (h *Hub) Drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	if c.dropped {
		return
	}
	h.leaveLocked(c)
	c.dropped = true
	close(c.send)
}

func (h *Hub) leaveLocked(c *Client) {
	if c.room == uuid.Nil {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.room)
		}
	}
	c.room = uuid.Nil
}

// RoomSize reports how many connections watch a chat room.
func (h *Hub) RoomSize(chatID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[chatID])
}

func (h *Hub) broadcast(chatID uuid.UUID, ev ServerEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal server event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[chatID] {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop the connection rather than block the
			// hub. The client re-syncs on reconnect via ListSince.
			h.dropLocked(c)
		}
	}
}
