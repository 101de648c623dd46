package services

import (
	"context"
	"time"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// Broadcaster defines the interface for pushing session updates to
// connected clients.
type Broadcaster interface {
	BroadcastSession(sessionID string, payload interface{})
}

// notifier is shared by the services that mutate session state. After a
// committed mutation they publish a fresh snapshot so subscribed
// clients converge without polling.
type notifier struct {
	log         logger.Logger
	repo        repository.FullRepository
	broadcaster Broadcaster
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (n *notifier) SetBroadcaster(b Broadcaster) {
	n.broadcaster = b
}

// notifySession loads the session detail and broadcasts it. Broadcast
// failures must never fail the mutation that triggered them.
func (n *notifier) notifySession(ctx context.Context, sessionID string) {
	if n.broadcaster == nil {
		return
	}
	detail, err := loadDetail(ctx, n.repo, sessionID)
	if err != nil {
		n.log.Warn("Failed to load session for broadcast", "session", sessionID, "error", err)
		return
	}
	n.broadcaster.BroadcastSession(sessionID, detail)
}

// loadDetail assembles a session with its players and maps
func loadDetail(ctx context.Context, repo repository.FullRepository, sessionID string) (*models.SessionDetail, error) {
	session, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	players, err := repo.ListSessionPlayers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	maps, err := repo.ListSessionMaps(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.SessionDetail{Session: *session, Players: players, Maps: maps}, nil
}

// playerByToken maps an access token to its player slot. An expired
// token fails even if the row still exists.
func playerByToken(ctx context.Context, repo repository.FullRepository, token string, now time.Time) (*models.SessionPlayer, error) {
	p, err := repo.GetPlayerByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.TokenExpiresAt != nil && p.TokenExpiresAt.Before(now) {
		return nil, ErrTokenExpired
	}
	return p, nil
}

// lockIP binds a player to the first remote address they act from.
// The lock is immutable until the session ends.
func lockIP(p *models.SessionPlayer, ip string) error {
	if ip == "" {
		return nil
	}
	if p.LockedIP == "" {
		p.LockedIP = ip
		return nil
	}
	if p.LockedIP != ip {
		return ErrAddressMismatch
	}
	return nil
}
