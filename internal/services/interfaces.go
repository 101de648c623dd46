package services

import (
	"context"

	"github.com/rgadsdon/mapveto/internal/models"
)

// MapServicer defines master map pool operations
type MapServicer interface {
	ListMaps(ctx context.Context) ([]models.Map, error)
	ListAllMaps(ctx context.Context) ([]models.Map, error)
	GetMap(ctx context.Context, id int64) (*models.Map, error)
	CreateMap(ctx context.Context, name, imageURL string) (int64, error)
	UpdateMap(ctx context.Context, id int64, name, imageURL string, active bool) error
	DeleteMap(ctx context.Context, id int64) error
}

// SessionServicer defines session setup operations
type SessionServicer interface {
	Create(ctx context.Context, name string, format models.Format, timerSeconds, playerCount int) (*models.SessionDetail, error)
	Get(ctx context.Context, id string) (*models.SessionDetail, error)
	List(ctx context.Context) ([]models.Session, error)
	UpdateDraft(ctx context.Context, id, name string, timerSeconds int) error
	SetMapPool(ctx context.Context, id string, mapIDs []int64) error
	SetPlayerCount(ctx context.Context, id string, playerCount int) error
	AssignPlayer(ctx context.Context, id, slot, teamName string) error
	Delete(ctx context.Context, id string) error
	Audit(ctx context.Context, id string) ([]models.AuditEntry, error)
}

// LifecycleServicer defines session state machine operations
type LifecycleServicer interface {
	Finalize(ctx context.Context, sessionID string) error
	Start(ctx context.Context, sessionID string) error
	Pause(ctx context.Context, sessionID string) error
	Resume(ctx context.Context, sessionID string) error
	Reset(ctx context.Context, sessionID string) error
	End(ctx context.Context, sessionID string, winnerSessionMapID int64) error
	ForceRandom(ctx context.Context, sessionID string) error
	ExpireStale(ctx context.Context) (int, error)
	SetBroadcaster(b Broadcaster)
}

// ResolverServicer defines ban and vote operations
type ResolverServicer interface {
	PlayerView(ctx context.Context, token string) (*models.SessionPlayer, *models.SessionDetail, error)
	SubmitBan(ctx context.Context, token, ip string, sessionMapID int64) (*BanResult, error)
	SubmitVote(ctx context.Context, token, ip string, sessionMapID int64) (*VoteResult, error)
	SubmitVoteFor(ctx context.Context, sessionID string, playerID, sessionMapID int64) (*VoteResult, error)
	ResolveRound(ctx context.Context, sessionID string) (*RoundResolution, error)
	SetBroadcaster(b Broadcaster)
}

// SupervisorServicer defines presence and timer supervision operations
type SupervisorServicer interface {
	Heartbeat(ctx context.Context, token, ip string) error
	SweepTimeouts(ctx context.Context) (int, error)
	SweepHeartbeats(ctx context.Context) (int, error)
	Countdown(ctx context.Context, sessionID string) (*CountdownState, error)
	SetBroadcaster(b Broadcaster)
}

// LinkServicer defines player join link operations
type LinkServicer interface {
	PlayerJoinURL(ctx context.Context, playerID int64) (string, error)
	QRImage(ctx context.Context, playerID int64) ([]byte, error)
}

// SettingsServicer defines settings operations
type SettingsServicer interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// Ensure services implement their interfaces
var (
	_ MapServicer        = (*MapService)(nil)
	_ SessionServicer    = (*SessionService)(nil)
	_ LifecycleServicer  = (*LifecycleService)(nil)
	_ ResolverServicer   = (*ResolverService)(nil)
	_ SupervisorServicer = (*SupervisorService)(nil)
	_ LinkServicer       = (*LinkService)(nil)
	_ SettingsServicer   = (*SettingsService)(nil)
)
