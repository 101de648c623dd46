package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rgadsdon/mapveto/internal/errors"
	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// Turn timer bounds, seconds.
const (
	minTimerSeconds     = 10
	maxTimerSeconds     = 600
	defaultTimerSeconds = 60
)

// SessionService handles session CRUD while a session is still
// editable. Lifecycle transitions live in LifecycleService.
type SessionService struct {
	log        logger.Logger
	repo       repository.FullRepository
	sessionTTL time.Duration
}

// NewSessionService creates a new SessionService
func NewSessionService(log logger.Logger, repo repository.FullRepository, sessionTTL time.Duration) *SessionService {
	return &SessionService{log: log, repo: repo, sessionTTL: sessionTTL}
}

// Create creates a DRAFT session with empty player slots.
// The format is fixed for the session's lifetime.
func (s *SessionService) Create(ctx context.Context, name string, format models.Format, timerSeconds, playerCount int) (*models.SessionDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("session name is required")
	}
	if !format.Valid() {
		return nil, errors.Validationf("unknown format %q", format)
	}
	if timerSeconds == 0 {
		timerSeconds = defaultTimerSeconds
	}
	if timerSeconds < minTimerSeconds || timerSeconds > maxTimerSeconds {
		return nil, errors.Validationf("timer must be between %d and %d seconds", minTimerSeconds, maxTimerSeconds)
	}

	slots, err := slotsForFormat(format, playerCount)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &models.Session{
		ID:           uuid.NewString(),
		Name:         name,
		Format:       format,
		Status:       models.StatusDraft,
		TimerSeconds: timerSeconds,
		PlayerCount:  len(slots),
		CurrentRound: 1,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceSessionPlayers(ctx, session.ID, slots); err != nil {
		return nil, err
	}

	s.log.Info("Session created", "session", session.ID, "name", name, "format", format)
	return loadDetail(ctx, s.repo, session.ID)
}

// slotsForFormat validates the player count for a format and returns
// the slot roles. ABBA is always exactly two players.
func slotsForFormat(format models.Format, playerCount int) ([]string, error) {
	switch format {
	case models.FormatABBA:
		if playerCount != 0 && playerCount != 2 {
			return nil, errors.Validation("ABBA sessions have exactly 2 players")
		}
		return models.AbbaSlots(), nil
	case models.FormatMultiplayer:
		if playerCount == 0 {
			playerCount = 2
		}
		if playerCount < 2 || playerCount > 4 {
			return nil, errors.Validation("multiplayer sessions have 2 to 4 players")
		}
		return models.MultiplayerSlots(playerCount), nil
	default:
		return nil, errors.Validationf("unknown format %q", format)
	}
}

// Get returns a session with its players and maps
func (s *SessionService) Get(ctx context.Context, id string) (*models.SessionDetail, error) {
	return loadDetail(ctx, s.repo, id)
}

// List returns all sessions, newest first
func (s *SessionService) List(ctx context.Context) ([]models.Session, error) {
	return s.repo.ListSessions(ctx)
}

// UpdateDraft edits name and turn timer. Legal in DRAFT and WAITING,
// the only editable states.
func (s *SessionService) UpdateDraft(ctx context.Context, id, name string, timerSeconds int) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !session.Status.Editable() {
		return ErrInvalidState
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = session.Name
	}
	if timerSeconds == 0 {
		timerSeconds = session.TimerSeconds
	}
	if timerSeconds < minTimerSeconds || timerSeconds > maxTimerSeconds {
		return errors.Validationf("timer must be between %d and %d seconds", minTimerSeconds, maxTimerSeconds)
	}
	return s.repo.UpdateSessionSettings(ctx, id, name, timerSeconds)
}

// SetMapPool snapshots a map pool from the master list. Only legal in
// DRAFT; the snapshot decouples the session from later master edits.
func (s *SessionService) SetMapPool(ctx context.Context, id string, mapIDs []int64) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != models.StatusDraft {
		return ErrInvalidState
	}
	if len(mapIDs) < 2 {
		return errors.Validation("map pool needs at least 2 maps")
	}
	seen := make(map[int64]bool, len(mapIDs))
	for _, mid := range mapIDs {
		if seen[mid] {
			return errors.Validation("map pool contains duplicates")
		}
		seen[mid] = true
	}
	maps, err := s.repo.GetMapsByIDs(ctx, mapIDs)
	if err != nil {
		return err
	}
	return s.repo.ReplaceSessionMaps(ctx, id, maps)
}

// SetPlayerCount resizes the multiplayer slot list. DRAFT only; ABBA
// sessions are fixed at two slots.
func (s *SessionService) SetPlayerCount(ctx context.Context, id string, playerCount int) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != models.StatusDraft {
		return ErrInvalidState
	}
	if session.Format != models.FormatMultiplayer {
		return errors.Validation("player count is fixed for ABBA sessions")
	}
	slots, err := slotsForFormat(session.Format, playerCount)
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceSessionPlayers(ctx, id, slots); err != nil {
		return err
	}
	return s.repo.InSession(ctx, id, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		sess.PlayerCount = len(slots)
		return tx.SaveSession(sess)
	})
}

// AssignPlayer sets the team name for a slot. Legal while editable.
func (s *SessionService) AssignPlayer(ctx context.Context, id, slot, teamName string) error {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if !session.Status.Editable() {
		return ErrInvalidState
	}
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return errors.Validation("team name is required")
	}
	return s.repo.UpdatePlayerTeam(ctx, id, slot, teamName)
}

// Delete removes a session and everything it owns. This is the only
// path that deletes session records, and it is always an explicit
// admin action.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetSession(ctx, id); err != nil {
		return err
	}
	s.log.Info("Session deleted", "session", id)
	return s.repo.DeleteSession(ctx, id)
}

// Audit returns the session's audit trail
func (s *SessionService) Audit(ctx context.Context, id string) ([]models.AuditEntry, error) {
	if _, err := s.repo.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListAudit(ctx, id)
}
