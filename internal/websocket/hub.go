package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"channel-service/internal/presence"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const roomKeyPrefix = "room:"

// envelope wraps payloads mirrored through Redis so instances can skip
// their own publications.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Hub owns all live websocket clients and the per-channel rooms. It
// implements presence.Broadcaster: delivery is non-blocking per
// subscriber, and events are mirrored through Redis pub/sub so rooms span
// instances.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client

	redis      *redis.Client // nil disables the cross-instance mirror
	instanceID string

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		redis:      redisClient,
		instanceID: uuid.New().String(),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Run processes client registration until Stop is called.
func (h *Hub) Run() {
	if h.redis != nil {
		go h.redisListener()
	}
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.ctx.Done():
			h.logger.Info("websocket hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("client registered", "connId", c.id)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		for channel, room := range h.rooms {
			delete(room, c.id)
			if len(room) == 0 {
				delete(h.rooms, channel)
			}
		}
	}
	h.mu.Unlock()
	c.closeSend()
	h.logger.Info("client unregistered", "connId", c.id)
}

// Subscribe adds a connection to a channel's room.
func (h *Hub) Subscribe(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	room, ok := h.rooms[channel]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[channel] = room
	}
	room[connID] = c
}

// Unsubscribe removes a connection from a channel's room.
func (h *Hub) Unsubscribe(channel, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[channel]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, channel)
	}
}

// Publish fans a presence event out to a channel's room, skipping any
// excluded originators.
func (h *Hub) Publish(channel string, event presence.Event, exclude ...string) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}
	h.deliverLocal(channel, data, exclude)
	h.mirror(channel, data)
}

// SendTo delivers an event to a single connection, typically an error for
// the originator of a failed transition.
func (h *Hub) SendTo(connID string, event presence.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(data)
	}
}

// BroadcastRaw fans an already-marshaled payload (chat messages) out to a
// channel's room.
func (h *Hub) BroadcastRaw(channel string, data []byte) {
	h.deliverLocal(channel, data, nil)
	h.mirror(channel, data)
}

// CloseConn force-closes a connection's transport. Used by the liveness
// monitor after expiring a silent connection.
func (h *Hub) CloseConn(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.conn.Close()
	}
}

// deliverLocal writes to every room subscriber without blocking: a
// subscriber whose send buffer is full is skipped so it cannot stall the
// rest of the room or the transition that triggered the publish.
func (h *Hub) deliverLocal(channel string, data []byte, exclude []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[channel]
	for id, c := range room {
		if contains(exclude, id) {
			continue
		}
		if !c.enqueue(data) {
			h.logger.Warn("dropping event for slow subscriber", "connId", id, "channel", channel)
		}
	}
}

func (h *Hub) mirror(channel string, data []byte) {
	if h.redis == nil {
		return
	}
	wrapped, err := json.Marshal(envelope{Origin: h.instanceID, Payload: data})
	if err != nil {
		return
	}
	if err := h.redis.Publish(h.ctx, roomKeyPrefix+channel, wrapped).Err(); err != nil {
		h.logger.Warn("redis mirror publish failed", "channel", channel, "error", err)
	}
}

// redisListener delivers events published by other instances to the local
// rooms. Own publications are identified by origin and skipped.
func (h *Hub) redisListener() {
	pubsub := h.redis.PSubscribe(h.ctx, roomKeyPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("malformed mirror payload", "error", err)
				continue
			}
			if env.Origin == h.instanceID {
				continue
			}
			channel := strings.TrimPrefix(msg.Channel, roomKeyPrefix)
			h.deliverLocal(channel, env.Payload, nil)
		case <-h.ctx.Done():
			return
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
