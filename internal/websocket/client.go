package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"channel-service/internal/presence"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 256
)

// Conn is the subset of *websocket.Conn the client pumps use. Tests swap
// in a mock.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// ChatSink persists a chat message and returns the wire payload to fan
// out to the room.
type ChatSink interface {
	HandleChat(ctx context.Context, channel, memberID, name, text string) ([]byte, error)
}

// Client is one websocket connection. It dispatches inbound protocol
// messages to the presence session manager and drains the hub's fan-out
// through its buffered send channel.
type Client struct {
	id      string
	hub     *Hub
	conn    Conn
	send    chan []byte
	session *presence.Manager
	chats   ChatSink

	sendClosed int32
	logger     *slog.Logger
}

func NewClient(hub *Hub, conn Conn, session *presence.Manager, chats ChatSink, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		id:      uuid.New().String(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		session: session,
		chats:   chats,
		logger:  logger,
	}
}

func (c *Client) ID() string { return c.id }

// Start registers the client and spins up its pumps. The presence core
// learns about the connection before any message can reference it.
func (c *Client) Start() {
	c.session.Connect(c.id)
	select {
	case c.hub.register <- c:
	case <-c.hub.ctx.Done():
	}
	go c.writePump()
	go c.readPump()
}

// enqueue hands a payload to the write pump without blocking. Returns
// false when the buffer is full and the payload was dropped.
func (c *Client) enqueue(data []byte) bool {
	if atomic.LoadInt32(&c.sendClosed) == 1 {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	if atomic.CompareAndSwapInt32(&c.sendClosed, 0, 1) {
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		// Transport-level disconnect always fires, whether or not the
		// client sent an explicit leave first.
		if err := c.session.Disconnect(context.Background(), c.id); err != nil {
			c.logger.Error("disconnect cleanup failed", "connId", c.id, "error", err)
		}
		// The hub may already be stopped during shutdown; do not park the
		// pump goroutine on a channel nobody drains.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", "connId", c.id, "error", err)
			} else {
				c.logger.Debug("websocket closed", "connId", c.id, "error", err)
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	ctx := context.Background()

	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("malformed message", "connId", c.id, "error", err)
		c.hub.SendTo(c.id, presence.ErrorEvent(ErrCodeBadMessage, "malformed message"))
		return
	}
	if !msg.Type.IsValid() {
		c.hub.SendTo(c.id, presence.ErrorEvent(ErrCodeBadMessage, "unknown message type"))
		return
	}

	switch msg.Type {
	case MessageTypeJoin:
		if err := c.session.Join(ctx, c.id, msg.Channel, msg.MemberID); err != nil {
			c.sendError(err)
		}

	case MessageTypeHeartbeat:
		if err := c.session.Heartbeat(ctx, c.id, msg.Channel, msg.MemberID); err != nil {
			c.sendError(err)
		}

	case MessageTypeLeave:
		if err := c.session.Leave(ctx, c.id); err != nil {
			c.sendError(err)
		}

	case MessageTypeChat:
		binding, ok := c.session.Binding(c.id)
		if !ok {
			c.hub.SendTo(c.id, presence.ErrorEvent(ErrCodeNotJoined, "join a channel before sending messages"))
			return
		}
		payload, err := c.chats.HandleChat(ctx, binding.Channel, binding.MemberID, binding.Name, msg.Text)
		if err != nil {
			c.logger.Error("failed to handle chat message", "connId", c.id, "error", err)
			c.hub.SendTo(c.id, presence.ErrorEvent(ErrCodeInternal, "failed to deliver message"))
			return
		}
		c.hub.BroadcastRaw(binding.Channel, payload)
	}
}

// sendError maps a presence core failure to an error event for this
// connection only. Failures are never broadcast to the room.
func (c *Client) sendError(err error) {
	var code string
	switch {
	case errors.Is(err, presence.ErrMemberNotFound):
		code = ErrCodeMemberNotFound
	case errors.Is(err, presence.ErrAlreadyBound):
		code = ErrCodeAlreadyBound
	case errors.Is(err, presence.ErrStoreUnavailable):
		code = ErrCodeStoreUnavailable
	case errors.Is(err, presence.ErrNotConnected):
		// Connection is already gone; nobody left to tell.
		return
	default:
		code = ErrCodeInternal
	}
	c.hub.SendTo(c.id, presence.ErrorEvent(code, err.Error()))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write error", "connId", c.id, "error", err)
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
