package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/services"
	"github.com/rgadsdon/mapveto/internal/testutil"
)

// newTestHub builds a hub over an in-memory repository and returns it
// with the session service used for seeding.
func newTestHub(t *testing.T) (*Hub, *services.SessionService) {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	log := logger.New()
	sessions := services.NewSessionService(log, repo, time.Hour)
	supervisor := services.NewSupervisorService(log, repo, 15*time.Second, 5*time.Minute)
	return New(log, sessions, supervisor), sessions
}

func createSession(t *testing.T, sessions *services.SessionService) string {
	t.Helper()
	detail, err := sessions.Create(context.Background(), "WS Test", models.FormatABBA, 30, 2)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return detail.Session.ID
}

func TestNew_CreatesHubWithDependencies(t *testing.T) {
	hub, _ := newTestHub(t)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}
	if hub.log == nil {
		t.Error("expected logger to be set")
	}
	if hub.sessions == nil {
		t.Error("expected session service to be set")
	}
	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("expected channels to be initialized")
	}
}

func TestServeWs_RequiresSessionParam(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.Start()

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()

	hub.ServeWs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without session param, got %d", w.Code)
	}
}

func TestServeWs_UnknownSession(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.Start()

	req := httptest.NewRequest("GET", "/ws?session=missing", nil)
	w := httptest.NewRecorder()

	hub.ServeWs(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestServeWs_ClientReceivesSnapshot(t *testing.T) {
	hub, sessions := newTestHub(t)
	hub.Start()
	sessionID := createSession(t, sessions)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:] + "?session=" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	// The hub pushes the current session state on connect
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read initial snapshot: %v", err)
	}

	var msg models.WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if msg.Type != "session_state" {
		t.Errorf("expected type 'session_state', got %s", msg.Type)
	}
}

func TestHub_BroadcastReachesRoom(t *testing.T) {
	hub, sessions := newTestHub(t)
	hub.Start()
	sessionID := createSession(t, sessions)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:] + "?session=" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	// Discard the initial snapshot
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("failed to read initial snapshot: %v", err)
	}

	hub.BroadcastMessage(sessionID, "countdown", map[string]int{"remaining": 12})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var msg models.WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if msg.Type != "countdown" {
		t.Errorf("expected type 'countdown', got %s", msg.Type)
	}
}

func TestHub_BroadcastSkipsOtherRooms(t *testing.T) {
	hub, sessions := newTestHub(t)
	hub.Start()
	sessionID := createSession(t, sessions)
	otherID := createSession(t, sessions)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:] + "?session=" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err != nil {
		t.Fatalf("failed to read initial snapshot: %v", err)
	}

	// A message for another session must never arrive here
	hub.BroadcastMessage(otherID, "countdown", map[string]int{"remaining": 5})

	ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected no message for a different session's room")
	}
}

func TestHub_ClientRegistration(t *testing.T) {
	hub, sessions := newTestHub(t)
	hub.Start()
	sessionID := createSession(t, sessions)

	client := &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan models.WSMessage, 256),
	}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	hub.mutex.RLock()
	_, exists := hub.clients[client]
	hub.mutex.RUnlock()

	if !exists {
		t.Error("expected client to be registered")
	}

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)

	hub.mutex.RLock()
	_, exists = hub.clients[client]
	hub.mutex.RUnlock()

	if exists {
		t.Error("expected client to be unregistered")
	}
}

func TestServeWs_ClientDisconnect(t *testing.T) {
	hub, sessions := newTestHub(t)
	hub.Start()
	sessionID := createSession(t, sessions)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:] + "?session=" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	ws.Close()
	time.Sleep(200 * time.Millisecond)

	hub.mutex.RLock()
	clientCount := len(hub.clients)
	hub.mutex.RUnlock()

	if clientCount != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", clientCount)
	}
}

func TestStartCountdown_ContextCancellation(t *testing.T) {
	hub, _ := newTestHub(t)
	hub.Start()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan bool)

	go func() {
		hub.StartCountdown(ctx)
		stopped <- true
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(500 * time.Millisecond):
		t.Error("countdown broadcaster did not stop when context was cancelled")
	}
}
