package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 16
)

// Client-to-server event names, matching what the frontend has always
// sent.
const (
	eventJoinChat   = "join chat"
	eventLeaveChat  = "leave chat"
	eventNewMessage = "new message"
)

// ClientEvent is what a connected client sends over the socket.
type ClientEvent struct {
	Event string    `json:"event"`
	Chat  uuid.UUID `json:"chat"`
}

// Access is the slice of the membership guard the socket layer needs.
type Access interface {
	RequireAccess(ctx context.Context, userID, chatID uuid.UUID) error
}

// Client is one authenticated WebSocket connection. room and dropped are
// hub state, guarded by the hub's mutex.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   uuid.UUID
	room     uuid.UUID
	dropped  bool
	guard    Access
	notifier service.Notifier
	logger   *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, guard Access, notifier service.Notifier, logger *zap.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		userID:   userID,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// Serve runs the read and write pumps until the connection dies.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		// Drop closes the send channel, so the write pump exits right
		// away instead of waiting for the next ping to fail.
		c.hub.Drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read", zap.Error(err))
			}
			return
		}

		var ev ClientEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			c.logger.Warn("skip malformed client event", zap.Error(err))
			continue
		}
		c.handle(ctx, ev)
	}
}

func (c *Client) handle(ctx context.Context, ev ClientEvent) {
	switch ev.Event {
	case eventJoinChat:
		// Room subscription goes through the same guard as the REST
		// reads: no membership, no live updates.
		if err := c.guard.RequireAccess(ctx, c.userID, ev.Chat); err != nil {
			c.logger.Info("room join denied",
				zap.String("user_id", c.userID.String()),
				zap.String("chat_id", ev.Chat.String()),
			)
			return
		}
		c.hub.JoinRoom(c, ev.Chat)
	case eventLeaveChat:
		c.hub.LeaveRoom(c)
	case eventNewMessage:
		// The client announces after a successful REST send; relaying
		// through the notifier reaches rooms on every instance.
		c.notifier.AnnounceNewMessage(ctx, ev.Chat)
	default:
		c.logger.Warn("unknown client event", zap.String("event", ev.Event))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
