package repository

import (
	"context"

	"github.com/rgadsdon/mapveto/internal/models"
)

// MapRepository defines master map pool operations
type MapRepository interface {
	ListMaps(ctx context.Context) ([]models.Map, error)
	ListAllMaps(ctx context.Context) ([]models.Map, error)
	GetMap(ctx context.Context, id int64) (*models.Map, error)
	GetMapsByIDs(ctx context.Context, ids []int64) ([]models.Map, error)
	CreateMap(ctx context.Context, name, imageURL string) (int64, error)
	UpdateMap(ctx context.Context, id int64, name, imageURL string, active bool) error
	DeleteMap(ctx context.Context, id int64) error
}

// SessionRepository defines session record operations
type SessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	ListSessionIDsByStatus(ctx context.Context, statuses ...models.Status) ([]string, error)
	UpdateSessionSettings(ctx context.Context, id, name string, timerSeconds int) error
	DeleteSession(ctx context.Context, id string) error
	ReplaceSessionMaps(ctx context.Context, sessionID string, maps []models.Map) error
	ListSessionMaps(ctx context.Context, sessionID string) ([]models.SessionMap, error)
	InSession(ctx context.Context, sessionID string, fn func(tx *SessionTx) error) error
}

// PlayerRepository defines session player operations
type PlayerRepository interface {
	ReplaceSessionPlayers(ctx context.Context, sessionID string, slots []string) error
	ListSessionPlayers(ctx context.Context, sessionID string) ([]models.SessionPlayer, error)
	GetPlayerByToken(ctx context.Context, token string) (*models.SessionPlayer, error)
	GetSessionPlayer(ctx context.Context, playerID int64) (*models.SessionPlayer, error)
	UpdatePlayerTeam(ctx context.Context, sessionID, slot, teamName string) error
}

// AuditRepository defines audit trail reads; writes happen inside
// session transactions.
type AuditRepository interface {
	ListAudit(ctx context.Context, sessionID string) ([]models.AuditEntry, error)
}

// SettingsRepository defines settings data operations
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// FullRepository combines all repository interfaces.
// Use this when a service needs access to multiple domains.
type FullRepository interface {
	MapRepository
	SessionRepository
	PlayerRepository
	AuditRepository
	SettingsRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
