package mock

import (
	"context"

	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.GetSessionError = errors.New("database error")
//	svc := services.NewSessionService(log, mockRepo, time.Hour)
//	_, err := svc.Get(ctx, "some-id")
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Map Errors =====
	ListMapsError     error
	GetMapError       error
	GetMapsByIDsError error
	CreateMapError    error
	UpdateMapError    error
	DeleteMapError    error

	// ===== Session Errors =====
	CreateSessionError          error
	GetSessionError             error
	ListSessionsError           error
	ListSessionIDsByStatusError error
	UpdateSessionSettingsError  error
	DeleteSessionError          error
	ReplaceSessionMapsError     error
	ListSessionMapsError        error
	InSessionError              error

	// ===== Player Errors =====
	ReplaceSessionPlayersError error
	ListSessionPlayersError    error
	GetPlayerByTokenError      error
	GetSessionPlayerError      error
	UpdatePlayerTeamError      error

	// ===== Settings Errors =====
	GetSettingError error
	SetSettingError error
	GetStatsError   error

	// ===== Audit Errors =====
	ListAuditError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Map Methods =====

func (m *Repository) ListMaps(ctx context.Context) ([]models.Map, error) {
	if m.ListMapsError != nil {
		return nil, m.ListMapsError
	}
	return m.FullRepository.ListMaps(ctx)
}

func (m *Repository) GetMap(ctx context.Context, id int64) (*models.Map, error) {
	if m.GetMapError != nil {
		return nil, m.GetMapError
	}
	return m.FullRepository.GetMap(ctx, id)
}

func (m *Repository) GetMapsByIDs(ctx context.Context, ids []int64) ([]models.Map, error) {
	if m.GetMapsByIDsError != nil {
		return nil, m.GetMapsByIDsError
	}
	return m.FullRepository.GetMapsByIDs(ctx, ids)
}

func (m *Repository) CreateMap(ctx context.Context, name, imageURL string) (int64, error) {
	if m.CreateMapError != nil {
		return 0, m.CreateMapError
	}
	return m.FullRepository.CreateMap(ctx, name, imageURL)
}

func (m *Repository) UpdateMap(ctx context.Context, id int64, name, imageURL string, active bool) error {
	if m.UpdateMapError != nil {
		return m.UpdateMapError
	}
	return m.FullRepository.UpdateMap(ctx, id, name, imageURL, active)
}

func (m *Repository) DeleteMap(ctx context.Context, id int64) error {
	if m.DeleteMapError != nil {
		return m.DeleteMapError
	}
	return m.FullRepository.DeleteMap(ctx, id)
}

// ===== Session Methods =====

func (m *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	if m.CreateSessionError != nil {
		return m.CreateSessionError
	}
	return m.FullRepository.CreateSession(ctx, s)
}

func (m *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if m.GetSessionError != nil {
		return nil, m.GetSessionError
	}
	return m.FullRepository.GetSession(ctx, id)
}

func (m *Repository) ListSessions(ctx context.Context) ([]models.Session, error) {
	if m.ListSessionsError != nil {
		return nil, m.ListSessionsError
	}
	return m.FullRepository.ListSessions(ctx)
}

func (m *Repository) ListSessionIDsByStatus(ctx context.Context, statuses ...models.Status) ([]string, error) {
	if m.ListSessionIDsByStatusError != nil {
		return nil, m.ListSessionIDsByStatusError
	}
	return m.FullRepository.ListSessionIDsByStatus(ctx, statuses...)
}

func (m *Repository) UpdateSessionSettings(ctx context.Context, id, name string, timerSeconds int) error {
	if m.UpdateSessionSettingsError != nil {
		return m.UpdateSessionSettingsError
	}
	return m.FullRepository.UpdateSessionSettings(ctx, id, name, timerSeconds)
}

func (m *Repository) DeleteSession(ctx context.Context, id string) error {
	if m.DeleteSessionError != nil {
		return m.DeleteSessionError
	}
	return m.FullRepository.DeleteSession(ctx, id)
}

func (m *Repository) ReplaceSessionMaps(ctx context.Context, sessionID string, maps []models.Map) error {
	if m.ReplaceSessionMapsError != nil {
		return m.ReplaceSessionMapsError
	}
	return m.FullRepository.ReplaceSessionMaps(ctx, sessionID, maps)
}

func (m *Repository) ListSessionMaps(ctx context.Context, sessionID string) ([]models.SessionMap, error) {
	if m.ListSessionMapsError != nil {
		return nil, m.ListSessionMapsError
	}
	return m.FullRepository.ListSessionMaps(ctx, sessionID)
}

func (m *Repository) InSession(ctx context.Context, sessionID string, fn func(tx *repository.SessionTx) error) error {
	if m.InSessionError != nil {
		return m.InSessionError
	}
	return m.FullRepository.InSession(ctx, sessionID, fn)
}

// ===== Player Methods =====

func (m *Repository) ReplaceSessionPlayers(ctx context.Context, sessionID string, slots []string) error {
	if m.ReplaceSessionPlayersError != nil {
		return m.ReplaceSessionPlayersError
	}
	return m.FullRepository.ReplaceSessionPlayers(ctx, sessionID, slots)
}

func (m *Repository) ListSessionPlayers(ctx context.Context, sessionID string) ([]models.SessionPlayer, error) {
	if m.ListSessionPlayersError != nil {
		return nil, m.ListSessionPlayersError
	}
	return m.FullRepository.ListSessionPlayers(ctx, sessionID)
}

func (m *Repository) GetPlayerByToken(ctx context.Context, token string) (*models.SessionPlayer, error) {
	if m.GetPlayerByTokenError != nil {
		return nil, m.GetPlayerByTokenError
	}
	return m.FullRepository.GetPlayerByToken(ctx, token)
}

func (m *Repository) GetSessionPlayer(ctx context.Context, playerID int64) (*models.SessionPlayer, error) {
	if m.GetSessionPlayerError != nil {
		return nil, m.GetSessionPlayerError
	}
	return m.FullRepository.GetSessionPlayer(ctx, playerID)
}

func (m *Repository) UpdatePlayerTeam(ctx context.Context, sessionID, slot, teamName string) error {
	if m.UpdatePlayerTeamError != nil {
		return m.UpdatePlayerTeamError
	}
	return m.FullRepository.UpdatePlayerTeam(ctx, sessionID, slot, teamName)
}

// ===== Settings Methods =====

func (m *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	if m.GetSettingError != nil {
		return "", m.GetSettingError
	}
	return m.FullRepository.GetSetting(ctx, key)
}

func (m *Repository) SetSetting(ctx context.Context, key, value string) error {
	if m.SetSettingError != nil {
		return m.SetSettingError
	}
	return m.FullRepository.SetSetting(ctx, key, value)
}

func (m *Repository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	if m.GetStatsError != nil {
		return nil, m.GetStatsError
	}
	return m.FullRepository.GetStats(ctx)
}

// ===== Audit Methods =====

func (m *Repository) ListAudit(ctx context.Context, sessionID string) ([]models.AuditEntry, error) {
	if m.ListAuditError != nil {
		return nil, m.ListAuditError
	}
	return m.FullRepository.ListAudit(ctx, sessionID)
}
