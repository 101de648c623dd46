package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger) // Custom conditional HTTP logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, map[string]string{"status": "ok"})
	})

	// WebSocket
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	// Player API (public, token-scoped)
	r.Get("/api/play/{token}", h.handlePlayerState)
	r.Post("/api/play/{token}/heartbeat", h.handleHeartbeat)
	r.Post("/api/play/{token}/ban", h.handleSubmitBan)
	r.Post("/api/play/{token}/vote", h.handleSubmitVote)

	// Auth routes (public)
	r.Post("/api/admin/login", h.handleLogin)
	r.Post("/api/admin/logout", h.handleLogout)
	r.Get("/api/admin/session", h.handleAuthCheck)

	// Admin API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuthAPI)

		// Master map pool
		r.Get("/api/admin/maps", h.handleGetMaps)
		r.Post("/api/admin/maps", h.handleCreateMap)
		r.Put("/api/admin/maps/{id}", h.handleUpdateMap)
		r.Delete("/api/admin/maps/{id}", h.handleDeleteMap)

		// Sessions
		r.Get("/api/admin/sessions", h.handleGetSessions)
		r.Post("/api/admin/sessions", h.handleCreateSession)
		r.Get("/api/admin/sessions/{id}", h.handleGetSession)
		r.Put("/api/admin/sessions/{id}", h.handleUpdateSession)
		r.Delete("/api/admin/sessions/{id}", h.handleDeleteSession)
		r.Put("/api/admin/sessions/{id}/maps", h.handleSetMapPool)
		r.Put("/api/admin/sessions/{id}/players", h.handleSetPlayerCount)
		r.Post("/api/admin/sessions/{id}/assign", h.handleAssignPlayer)
		r.Get("/api/admin/sessions/{id}/audit", h.handleGetAudit)

		// Lifecycle
		r.Post("/api/admin/sessions/{id}/finalize", h.lifecycleAction(func(r *http.Request, id string) error {
			return h.Lifecycle.Finalize(r.Context(), id)
		}, "Session finalized"))
		r.Post("/api/admin/sessions/{id}/start", h.lifecycleAction(func(r *http.Request, id string) error {
			return h.Lifecycle.Start(r.Context(), id)
		}, "Session started"))
		r.Post("/api/admin/sessions/{id}/pause", h.lifecycleAction(func(r *http.Request, id string) error {
			return h.Lifecycle.Pause(r.Context(), id)
		}, "Session paused"))
		r.Post("/api/admin/sessions/{id}/resume", h.lifecycleAction(func(r *http.Request, id string) error {
			return h.Lifecycle.Resume(r.Context(), id)
		}, "Session resumed"))
		r.Post("/api/admin/sessions/{id}/reset", h.lifecycleAction(func(r *http.Request, id string) error {
			return h.Lifecycle.Reset(r.Context(), id)
		}, "Session reset"))
		r.Post("/api/admin/sessions/{id}/force-random", h.lifecycleAction(func(r *http.Request, id string) error {
			return h.Lifecycle.ForceRandom(r.Context(), id)
		}, "Random winner selected"))
		r.Post("/api/admin/sessions/{id}/end", h.handleEndSession)
		r.Post("/api/admin/sessions/{id}/proxy-vote", h.handleProxyVote)
		r.Post("/api/admin/sessions/{id}/resolve-round", h.handleResolveRound)

		// Join links
		r.Get("/api/admin/players/{playerID}/link", h.handleGetJoinLink)
		r.Get("/api/admin/players/{playerID}/qr", h.handleGetJoinQR)

		// Settings & stats
		r.Get("/api/admin/settings", h.handleGetSettings)
		r.Put("/api/admin/settings", h.handleUpdateSettings)
		r.Get("/api/admin/stats", h.handleGetStats)
	})

	return r
}
