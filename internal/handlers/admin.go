package handlers

import (
	"net/http"

	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/services"
)

// --- Master map pool ---

// handleGetMaps returns the master map list. ?all=true includes
// deactivated maps.
func (h *Handlers) handleGetMaps(w http.ResponseWriter, r *http.Request) {
	var (
		maps []models.Map
		err  error
	)
	if r.URL.Query().Get("all") == "true" {
		maps, err = h.Maps.ListAllMaps(r.Context())
	} else {
		maps, err = h.Maps.ListMaps(r.Context())
	}
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, maps)
}

// handleCreateMap adds a map to the master pool
func (h *Handlers) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var req MapCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	id, err := h.Maps.CreateMap(r.Context(), req.Name, req.ImageURL)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, MapCreateResponse{ID: id})
}

// handleUpdateMap edits a master map
func (h *Handlers) handleUpdateMap(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req MapUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Maps.UpdateMap(r.Context(), id, req.Name, req.ImageURL, req.Active); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Map updated")
}

// handleDeleteMap deactivates a master map
func (h *Handlers) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.Maps.DeleteMap(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}

// --- Sessions ---

// handleGetSessions returns all sessions
func (h *Handlers) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Sessions.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, sessions)
}

// handleCreateSession creates a DRAFT session
func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	detail, err := h.Sessions.Create(r.Context(), req.Name, models.Format(req.Format), req.TimerSeconds, req.PlayerCount)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, detail)
}

// handleGetSession returns one session with players and maps
func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	detail, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, detail)
}

// handleUpdateSession edits session name and timer
func (h *Handlers) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req SessionUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Sessions.UpdateDraft(r.Context(), id, req.Name, req.TimerSeconds); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Session updated")
}

// handleDeleteSession removes a session entirely
func (h *Handlers) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.Sessions.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}

// handleSetMapPool snapshots the session's map pool
func (h *Handlers) handleSetMapPool(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req MapPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Sessions.SetMapPool(r.Context(), id, req.MapIDs); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Map pool updated")
}

// handleSetPlayerCount resizes the multiplayer slot list
func (h *Handlers) handleSetPlayerCount(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req PlayerCountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Sessions.SetPlayerCount(r.Context(), id, req.PlayerCount); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Player count updated")
}

// handleAssignPlayer names a player slot
func (h *Handlers) handleAssignPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req AssignPlayerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Sessions.AssignPlayer(r.Context(), id, req.Slot, req.TeamName); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Player assigned")
}

// handleGetAudit returns the session audit trail
func (h *Handlers) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	entries, err := h.Sessions.Audit(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, entries)
}

// --- Lifecycle ---

// lifecycleAction wraps a lifecycle transition into a handler
func (h *Handlers) lifecycleAction(action func(r *http.Request, id string) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := stringParam(r, "id")
		if err != nil {
			respondError(w, err)
			return
		}
		if err := action(r, id); err != nil {
			respondError(w, err)
			return
		}
		detail, err := h.Sessions.Get(r.Context(), id)
		if err != nil {
			respondSuccess(w, message)
			return
		}
		respondOK(w, detail)
	}
}

// handleEndSession forces a winner chosen by the admin
func (h *Handlers) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req EndSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.Lifecycle.End(r.Context(), id, req.SessionMapID); err != nil {
		respondError(w, err)
		return
	}
	detail, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, detail)
}

// handleProxyVote records a vote on a player's behalf
func (h *Handlers) handleProxyVote(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	var req ProxyVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Resolver.SubmitVoteFor(r.Context(), id, req.PlayerID, req.SessionMapID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleResolveRound resolves the round with the votes cast so far
func (h *Handlers) handleResolveRound(w http.ResponseWriter, r *http.Request) {
	id, err := stringParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	resolution, err := h.Resolver.ResolveRound(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, resolution)
}

// --- Join links ---

// handleGetJoinLink returns the join URL for a player slot
func (h *Handlers) handleGetJoinLink(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseInt64Param(r, "playerID")
	if err != nil {
		respondError(w, err)
		return
	}
	url, err := h.Links.PlayerJoinURL(r.Context(), playerID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, JoinLinkResponse{URL: url})
}

// handleGetJoinQR returns the join link QR code as a PNG
func (h *Handlers) handleGetJoinQR(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseInt64Param(r, "playerID")
	if err != nil {
		respondError(w, err)
		return
	}
	png, err := h.Links.QRImage(r.Context(), playerID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// --- Settings & stats ---

// handleGetSettings returns server settings
func (h *Handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	baseURL, err := h.Settings.GetSetting(r.Context(), services.SettingBaseURL)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, SettingsResponse{BaseURL: baseURL})
}

// handleUpdateSettings updates server settings
func (h *Handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.Settings.SetSetting(r.Context(), services.SettingBaseURL, req.BaseURL); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, "Settings updated")
}

// handleGetStats returns aggregate counters for the dashboard
func (h *Handlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Settings.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, stats)
}
