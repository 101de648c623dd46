package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// roomMessage targets one session's subscribers
type roomMessage struct {
	sessionID string
	message   models.WSMessage
}

// Hub maintains the set of active clients, grouped into per-session
// rooms, and broadcasts state updates to the room that cares.
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	sessions   services.SessionServicer
	supervisor services.SupervisorServicer
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan models.WSMessage
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, sessions services.SessionServicer, supervisor services.SupervisorServicer) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan roomMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   sessions,
		supervisor: supervisor,
	}
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// run handles client registration/unregistration and message broadcasting
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.log.Debug("Client connected", "session", client.sessionID, "total_clients", len(h.clients))

			// Send the current session snapshot to the new client
			go func() {
				detail, err := h.sessions.Get(context.Background(), client.sessionID)
				if err != nil {
					return
				}
				client.send <- models.WSMessage{
					Type:    "session_state",
					Payload: detail,
				}
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "session", client.sessionID, "total_clients", len(h.clients))

		case rm := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if client.sessionID != rm.sessionID {
					continue
				}
				select {
				case client.send <- rm.message:
				default:
					// Client's send channel is full, unregister
					go func(c *Client) {
						h.unregister <- c
					}(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// BroadcastMessage sends a message to every client watching a session
func (h *Hub) BroadcastMessage(sessionID, msgType string, payload interface{}) {
	h.broadcast <- roomMessage{
		sessionID: sessionID,
		message:   models.WSMessage{Type: msgType, Payload: payload},
	}
}

// BroadcastSession implements services.Broadcaster
func (h *Hub) BroadcastSession(sessionID string, payload interface{}) {
	h.BroadcastMessage(sessionID, "session_state", payload)
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, _ := json.Marshal(message)
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
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

// ServeWs handles websocket requests from clients. The session query
// parameter selects the room to join.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session query parameter required", http.StatusBadRequest)
		return
	}
	if _, err := h.sessions.Get(r.Context(), sessionID); err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan models.WSMessage, 256),
	}
	h.register <- client

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}

// StartCountdown starts the once-a-second timer broadcast goroutine
// with context-based cancellation.
func (h *Hub) StartCountdown(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Countdown broadcaster stopped")
			return
		case <-ticker.C:
			h.broadcastCountdowns()
		}
	}
}

// broadcastCountdowns pushes a timer tick to every session that has at
// least one subscriber. Sessions without a running timer are skipped.
func (h *Hub) broadcastCountdowns() {
	h.mutex.RLock()
	watched := make(map[string]bool)
	for client := range h.clients {
		watched[client.sessionID] = true
	}
	h.mutex.RUnlock()

	ctx := context.Background()
	for sessionID := range watched {
		state, err := h.supervisor.Countdown(ctx, sessionID)
		if err != nil {
			continue
		}
		if state.Status != models.StatusInProgress && state.Status != models.StatusPaused {
			continue
		}
		h.BroadcastMessage(sessionID, "countdown", state)
	}
}
