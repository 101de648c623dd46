package handlers

import (
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/services"
)

// MapCreateResponse is the response for map creation
type MapCreateResponse struct {
	ID int64 `json:"id"`
}

// JoinLinkResponse is the response for player join link lookups
type JoinLinkResponse struct {
	URL string `json:"url"`
}

// SettingsResponse is the response for settings
type SettingsResponse struct {
	BaseURL string `json:"base_url"`
}

// PlayerSlotResponse is a player's own slot as shown to that player
type PlayerSlotResponse struct {
	Slot     string `json:"slot"`
	TeamName string `json:"team_name"`
	HasVoted bool   `json:"has_voted"`
	YourTurn bool   `json:"your_turn"`
}

// PlayerViewResponse is the response for the player state endpoint
type PlayerViewResponse struct {
	You       PlayerSlotResponse       `json:"you"`
	Session   *models.SessionDetail    `json:"session"`
	Countdown *services.CountdownState `json:"countdown,omitempty"`
}
