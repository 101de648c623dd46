package handlers

import (
	"github.com/rgadsdon/mapveto/internal/auth"
	"github.com/rgadsdon/mapveto/internal/services"
	"github.com/rgadsdon/mapveto/internal/websocket"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Maps       services.MapServicer
	Sessions   services.SessionServicer
	Lifecycle  services.LifecycleServicer
	Resolver   services.ResolverServicer
	Supervisor services.SupervisorServicer
	Links      services.LinkServicer
	Settings   services.SettingsServicer
	Auth       *auth.Auth
	Hub        *websocket.Hub
	Log        HTTPLogger
}

// HTTPLogger is an interface for loggers that support HTTP logging control
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
}

// New creates a new Handlers instance with all dependencies
func New(
	maps services.MapServicer,
	sessions services.SessionServicer,
	lifecycle services.LifecycleServicer,
	resolver services.ResolverServicer,
	supervisor services.SupervisorServicer,
	links services.LinkServicer,
	settings services.SettingsServicer,
	adminAuth *auth.Auth,
	hub *websocket.Hub,
	log HTTPLogger,
) *Handlers {
	return &Handlers{
		Maps:       maps,
		Sessions:   sessions,
		Lifecycle:  lifecycle,
		Resolver:   resolver,
		Supervisor: supervisor,
		Links:      links,
		Settings:   settings,
		Auth:       adminAuth,
		Hub:        hub,
		Log:        log,
	}
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

// NewForTesting creates a Handlers instance with a known admin password
// and no websocket hub
func NewForTesting(
	maps services.MapServicer,
	sessions services.SessionServicer,
	lifecycle services.LifecycleServicer,
	resolver services.ResolverServicer,
	supervisor services.SupervisorServicer,
	links services.LinkServicer,
	settings services.SettingsServicer,
) *Handlers {
	return &Handlers{
		Maps:       maps,
		Sessions:   sessions,
		Lifecycle:  lifecycle,
		Resolver:   resolver,
		Supervisor: supervisor,
		Links:      links,
		Settings:   settings,
		Auth:       auth.New("test-password"),
		Log:        NoopHTTPLogger{},
	}
}
