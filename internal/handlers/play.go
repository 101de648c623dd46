package handlers

import (
	"net"
	"net/http"

	"github.com/rgadsdon/mapveto/internal/models"
)

// clientIP extracts the caller's address. middleware.RealIP has already
// folded proxy headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// handlePlayerState returns the session as seen by the player behind
// the token.
func (h *Handlers) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	token, err := stringParam(r, "token")
	if err != nil {
		respondError(w, err)
		return
	}

	player, detail, err := h.Resolver.PlayerView(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := PlayerViewResponse{
		You: PlayerSlotResponse{
			Slot:     player.Slot,
			TeamName: player.TeamName,
			HasVoted: player.HasVoted,
		},
		Session: detail,
	}
	sess := detail.Session
	if sess.Format == models.FormatABBA && sess.Status == models.StatusInProgress {
		resp.You.YourTurn = player.Slot == models.AbbaSlotForTurn(sess.CurrentTurn)
	}
	if countdown, err := h.Supervisor.Countdown(r.Context(), sess.ID); err == nil {
		resp.Countdown = countdown
	}
	respondOK(w, resp)
}

// handleHeartbeat records player presence and returns the timer state
func (h *Handlers) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	token, err := stringParam(r, "token")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.Supervisor.Heartbeat(r.Context(), token, clientIP(r)); err != nil {
		respondError(w, err)
		return
	}

	_, detail, err := h.Resolver.PlayerView(r.Context(), token)
	if err != nil {
		respondError(w, err)
		return
	}
	countdown, err := h.Supervisor.Countdown(r.Context(), detail.Session.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, countdown)
}

// handleSubmitBan handles an ABBA ban from a player
func (h *Handlers) handleSubmitBan(w http.ResponseWriter, r *http.Request) {
	token, err := stringParam(r, "token")
	if err != nil {
		respondError(w, err)
		return
	}
	var req BanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Resolver.SubmitBan(r.Context(), token, clientIP(r), req.SessionMapID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleSubmitVote handles a Multiplayer elimination vote from a player
func (h *Handlers) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	token, err := stringParam(r, "token")
	if err != nil {
		respondError(w, err)
		return
	}
	var req VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Resolver.SubmitVote(r.Context(), token, clientIP(r), req.SessionMapID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}
