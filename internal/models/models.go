package models

import (
	"encoding/json"
	"time"
)

// Format identifies the veto format a session was created with.
// It is chosen once at creation and never changes afterwards.
type Format string

const (
	FormatABBA        Format = "ABBA"
	FormatMultiplayer Format = "MULTIPLAYER"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatABBA || f == FormatMultiplayer
}

// Status is the session lifecycle state.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusComplete   Status = "COMPLETE"
	StatusExpired    Status = "EXPIRED"
)

// Editable reports whether session settings (name, timer, pool, slots)
// may still be changed.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusWaiting
}

// Terminal reports whether the session can never become active again.
// COMPLETE is not terminal: it can be reset back to WAITING for a replay.
func (s Status) Terminal() bool {
	return s == StatusExpired
}

// MapState is the per-session state of a snapshotted map.
type MapState string

const (
	MapAvailable MapState = "AVAILABLE"
	MapBanned    MapState = "BANNED"
	MapWinner    MapState = "WINNER"
)

// ActorType classifies who performed a state-changing action.
type ActorType string

const (
	ActorAdmin  ActorType = "ADMIN"
	ActorPlayer ActorType = "PLAYER"
	ActorSystem ActorType = "SYSTEM"
)

// PauseReason records why a session was paused, so that a player
// reconnect only resumes pauses caused by a disconnect.
type PauseReason string

const (
	PauseNone       PauseReason = ""
	PauseAdmin      PauseReason = "ADMIN"
	PauseDisconnect PauseReason = "DISCONNECT"
)

// Player slot roles. ABBA sessions use A/B; Multiplayer uses 1..4.
const (
	SlotPlayerA = "PLAYER_A"
	SlotPlayerB = "PLAYER_B"
	SlotPlayer1 = "PLAYER_1"
	SlotPlayer2 = "PLAYER_2"
	SlotPlayer3 = "PLAYER_3"
	SlotPlayer4 = "PLAYER_4"
)

// Map is a master pool map. Sessions snapshot its name/image at
// pool-selection time, so later edits never rewrite session history.
type Map struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Active   bool   `json:"active"`
}

// Session is one veto match.
type Session struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Format         Format      `json:"format"`
	Status         Status      `json:"status"`
	TimerSeconds   int         `json:"timer_seconds"`
	PlayerCount    int         `json:"player_count"`
	CurrentTurn    int         `json:"current_turn"`
	CurrentRound   int         `json:"current_round"`
	RevoteCount    int         `json:"revote_count"`
	TimerExpired   bool        `json:"timer_expired"`
	PauseReason    PauseReason `json:"pause_reason,omitempty"`
	TimerStartedAt *time.Time  `json:"timer_started_at,omitempty"`
	TimerPausedAt  *time.Time  `json:"timer_paused_at,omitempty"`
	WinnerMapID    *int64      `json:"winner_map_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

// SessionPlayer is one participant slot in a session.
// Token and locked IP are secrets and never serialized.
type SessionPlayer struct {
	ID             int64      `json:"id"`
	SessionID      string     `json:"session_id"`
	Slot           string     `json:"slot"`
	TeamName       string     `json:"team_name"`
	Token          string     `json:"-"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	LockedIP       string     `json:"-"`
	Connected      bool       `json:"connected"`
	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	HasVoted       bool       `json:"has_voted"`
}

// SessionMap is a session-scoped snapshot of a master map.
type SessionMap struct {
	ID          int64    `json:"id"`
	SessionID   string   `json:"session_id"`
	MapID       int64    `json:"map_id"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url"`
	State       MapState `json:"state"`
	BannedBy    *int64   `json:"banned_by,omitempty"`
	BannedTurn  *int     `json:"banned_turn,omitempty"`
	BannedRound *int     `json:"banned_round,omitempty"`
	VoteCount   int      `json:"vote_count"`
}

// Vote is a Multiplayer-round vote. At most one exists per
// (session, player, round); it is immutable once recorded.
type Vote struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	PlayerID     int64     `json:"player_id"`
	Round        int       `json:"round"`
	SessionMapID int64     `json:"session_map_id"`
	ByAdmin      bool      `json:"by_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEntry is one append-only record of a state-changing action.
type AuditEntry struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	ActorType ActorType       `json:"actor_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// SessionDetail bundles a session with its dependent records for
// state responses and websocket snapshots.
type SessionDetail struct {
	Session Session         `json:"session"`
	Players []SessionPlayer `json:"players"`
	Maps    []SessionMap    `json:"maps"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// AbbaSlots returns the two ABBA slot roles in order.
func AbbaSlots() []string {
	return []string{SlotPlayerA, SlotPlayerB}
}

// abbaTurnOrder is the repeating ban pattern: A opens, B bans twice,
// then A again.
var abbaTurnOrder = []string{SlotPlayerA, SlotPlayerB, SlotPlayerB, SlotPlayerA}

// AbbaSlotForTurn returns the slot whose ban the given turn waits on.
func AbbaSlotForTurn(turn int) string {
	return abbaTurnOrder[turn%len(abbaTurnOrder)]
}

// MultiplayerSlots returns the first n numbered slot roles.
func MultiplayerSlots(n int) []string {
	all := []string{SlotPlayer1, SlotPlayer2, SlotPlayer3, SlotPlayer4}
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}
