package handlers

// LoginRequest represents an admin login attempt
type LoginRequest struct {
	Password string `json:"password"`
}

// MapCreateRequest represents a request to add a master map
type MapCreateRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// MapUpdateRequest represents a request to edit a master map
type MapUpdateRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Active   bool   `json:"active"`
}

// SessionCreateRequest represents a request to create a veto session
type SessionCreateRequest struct {
	Name         string `json:"name"`
	Format       string `json:"format"`
	TimerSeconds int    `json:"timer_seconds"`
	PlayerCount  int    `json:"player_count"`
}

// SessionUpdateRequest represents a request to edit session settings
type SessionUpdateRequest struct {
	Name         string `json:"name"`
	TimerSeconds int    `json:"timer_seconds"`
}

// MapPoolRequest represents a request to set a session's map pool
type MapPoolRequest struct {
	MapIDs []int64 `json:"map_ids"`
}

// PlayerCountRequest represents a request to resize the player slots
type PlayerCountRequest struct {
	PlayerCount int `json:"player_count"`
}

// AssignPlayerRequest represents a request to name a player slot
type AssignPlayerRequest struct {
	Slot     string `json:"slot"`
	TeamName string `json:"team_name"`
}

// EndSessionRequest represents a request to force a winner
type EndSessionRequest struct {
	SessionMapID int64 `json:"session_map_id"`
}

// ProxyVoteRequest represents an admin vote on a player's behalf
type ProxyVoteRequest struct {
	PlayerID     int64 `json:"player_id"`
	SessionMapID int64 `json:"session_map_id"`
}

// BanRequest represents a player's ban submission
type BanRequest struct {
	SessionMapID int64 `json:"session_map_id"`
}

// VoteRequest represents a player's elimination vote
type VoteRequest struct {
	SessionMapID int64 `json:"session_map_id"`
}

// SettingsUpdateRequest represents a request to update settings
type SettingsUpdateRequest struct {
	BaseURL string `json:"base_url"`
}
