package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/calvinwijaya/minigames-be/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes; the feed is read-only
	},
}

// Encoding selects the frame format of a feed
type Encoding string

const (
	JSON    Encoding = "json"
	MsgPack Encoding = "msgpack"
)

// ParseEncoding defaults to JSON
func ParseEncoding(s string) (Encoding, bool) {
	switch Encoding(s) {
	case "", JSON:
		return JSON, true
	case MsgPack:
		return MsgPack, true
	default:
		return "", false
	}
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	MessageSnapshot = "snapshot"
	MessageClosed   = "closed"
)

// Encode renders a message in the given frame format
func (e Encoding) Encode(msg Message) ([]byte, error) {
	if e == MsgPack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(msg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.Marshal(msg)
}

func (e Encoding) frameType() int {
	if e == MsgPack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Client represents a connected WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	encoding  Encoding
	hub       *Hub
}

// Hub keeps the feeds of every watched session and fans snapshots out to them
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   map[string]map[*Client]bool
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations until ctx is done, then drops every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, exists := h.sessions[client.sessionID]; !exists {
				h.sessions[client.sessionID] = make(map[*Client]bool)
			}
			h.sessions[client.sessionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	if watchers := h.sessions[client.sessionID]; watchers != nil {
		delete(watchers, client)
		if len(watchers) == 0 {
			delete(h.sessions, client.sessionID)
		}
	}
}

// Watchers returns the number of feeds open on a session
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// BroadcastSnapshot pushes a snapshot to every feed of its session
func (h *Hub) BroadcastSnapshot(snap session.Snapshot) {
	h.broadcast(snap.ID, Message{Type: MessageSnapshot, SessionID: snap.ID, Data: snap})
}

// CloseSession tells the watchers of a discarded session that it is gone and
// drops their feeds once the closed frame is queued
func (h *Hub) CloseSession(sessionID string) {
	h.broadcast(sessionID, Message{Type: MessageClosed, SessionID: sessionID})

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.sessions[sessionID] {
		h.removeLocked(client)
	}
}

func (h *Hub) broadcast(sessionID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frames := make(map[Encoding][]byte, 2)
	for client := range h.sessions[sessionID] {
		data, ok := frames[client.encoding]
		if !ok {
			var err error
			data, err = client.encoding.Encode(msg)
			if err != nil {
				h.log.Error("error encoding message", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
			frames[client.encoding] = data
		}

		select {
		case client.send <- data:
		default:
			// Slow reader: it catches up from the next snapshot
		}
	}
}

// Attach upgrades the request and starts feeding snapshots of a session,
// beginning with initial
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, sessionID string, enc Encoding, initial session.Snapshot) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
		encoding:  enc,
		hub:       h,
	}

	if data, err := enc.Encode(Message{Type: MessageSnapshot, SessionID: sessionID, Data: initial}); err == nil {
		client.send <- data
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// readPump drains the connection; the feed accepts no client messages
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket closed", zap.String("session_id", c.sessionID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(c.encoding.frameType(), message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
