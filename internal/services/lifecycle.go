package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// LifecycleService owns the session state machine. Every transition is
// applied inside a session transaction: the current status is
// re-checked under the transaction, so an illegal transition fails with
// ErrInvalidTransition and leaves nothing behind.
type LifecycleService struct {
	notifier
	tokenTTL time.Duration
	now      func() time.Time
	randIntn func(n int) int
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(log logger.Logger, repo repository.FullRepository, tokenTTL time.Duration) *LifecycleService {
	return &LifecycleService{
		notifier: notifier{log: log, repo: repo},
		tokenTTL: tokenTTL,
		now:      time.Now,
		randIntn: rand.Intn,
	}
}

// Finalize moves DRAFT -> WAITING: validates the pool and slots, then
// issues the player access tokens.
func (s *LifecycleService) Finalize(ctx context.Context, sessionID string) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusDraft {
			return ErrInvalidTransition
		}
		maps, err := tx.Maps()
		if err != nil {
			return err
		}
		if len(maps) < 2 {
			return ErrPreconditionFailed
		}
		players, err := tx.Players()
		if err != nil {
			return err
		}
		for _, p := range players {
			if p.TeamName == "" {
				return ErrPreconditionFailed
			}
		}

		expiry := s.now().Add(s.tokenTTL)
		for _, p := range players {
			if err := tx.SetPlayerToken(p.ID, uuid.NewString(), expiry); err != nil {
				return err
			}
		}

		sess.Status = models.StatusWaiting
		if err := tx.SaveSession(sess); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "FINALIZE", map[string]interface{}{
			"maps":    len(maps),
			"players": len(players),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("Session finalized", "session", sessionID)
	s.notifySession(ctx, sessionID)
	return nil
}

// Start moves WAITING -> IN_PROGRESS once every player is connected,
// and starts the first turn timer.
func (s *LifecycleService) Start(ctx context.Context, sessionID string) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusWaiting {
			return ErrInvalidTransition
		}
		players, err := tx.Players()
		if err != nil {
			return err
		}
		for _, p := range players {
			if !p.Connected {
				return ErrPreconditionFailed
			}
		}

		now := s.now()
		sess.Status = models.StatusInProgress
		sess.TimerStartedAt = &now
		sess.TimerPausedAt = nil
		sess.TimerExpired = false
		sess.PauseReason = models.PauseNone
		if err := tx.SaveSession(sess); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "START", nil)
	})
	if err != nil {
		return err
	}
	s.log.Info("Session started", "session", sessionID)
	s.notifySession(ctx, sessionID)
	return nil
}

// Pause moves IN_PROGRESS -> PAUSED, freezing the timer at the pause
// point so a later resume preserves the remaining time.
func (s *LifecycleService) Pause(ctx context.Context, sessionID string) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress {
			return ErrInvalidTransition
		}
		now := s.now()
		sess.Status = models.StatusPaused
		sess.PauseReason = models.PauseAdmin
		sess.TimerPausedAt = &now
		if err := tx.SaveSession(sess); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "PAUSE", nil)
	})
	if err != nil {
		return err
	}
	s.notifySession(ctx, sessionID)
	return nil
}

// Resume moves PAUSED -> IN_PROGRESS as an admin override, regardless
// of why the session was paused.
func (s *LifecycleService) Resume(ctx context.Context, sessionID string) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusPaused {
			return ErrInvalidTransition
		}
		resumeTimer(sess, s.now())
		if err := tx.SaveSession(sess); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "RESUME", nil)
	})
	if err != nil {
		return err
	}
	s.notifySession(ctx, sessionID)
	return nil
}

// resumeTimer shifts timerStartedAt forward so that the elapsed time at
// the pause point is preserved, then clears the pause.
func resumeTimer(sess *models.Session, now time.Time) {
	if sess.TimerStartedAt != nil && sess.TimerPausedAt != nil {
		elapsed := sess.TimerPausedAt.Sub(*sess.TimerStartedAt)
		started := now.Add(-elapsed)
		sess.TimerStartedAt = &started
	}
	sess.TimerPausedAt = nil
	sess.Status = models.StatusInProgress
	sess.PauseReason = models.PauseNone
}

// End moves IN_PROGRESS/PAUSED -> COMPLETE with an admin-chosen winner.
// The chosen map must still be AVAILABLE.
func (s *LifecycleService) End(ctx context.Context, sessionID string, winnerSessionMapID int64) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress && sess.Status != models.StatusPaused {
			return ErrInvalidTransition
		}
		maps, err := tx.Maps()
		if err != nil {
			return err
		}
		var winner *models.SessionMap
		for i := range maps {
			if maps[i].ID == winnerSessionMapID {
				winner = &maps[i]
			}
		}
		if winner == nil || winner.State != models.MapAvailable {
			return ErrMapUnavailable
		}
		if err := completeSession(tx, sess, winner, s.now()); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "FORCE_COMPLETE", map[string]interface{}{
			"winner": winner.Name,
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("Session force-completed", "session", sessionID)
	s.notifySession(ctx, sessionID)
	return nil
}

// ForceRandom moves IN_PROGRESS/PAUSED -> COMPLETE by picking a winner
// uniformly at random from the maps still AVAILABLE.
func (s *LifecycleService) ForceRandom(ctx context.Context, sessionID string) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress && sess.Status != models.StatusPaused {
			return ErrInvalidTransition
		}
		maps, err := tx.Maps()
		if err != nil {
			return err
		}
		var available []models.SessionMap
		for _, m := range maps {
			if m.State == models.MapAvailable {
				available = append(available, m)
			}
		}
		if len(available) == 0 {
			return ErrPreconditionFailed
		}
		winner := available[s.randIntn(len(available))]
		if err := completeSession(tx, sess, &winner, s.now()); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "RANDOM_SELECTION", map[string]interface{}{
			"winner": winner.Name,
			"pool":   len(available),
		})
	})
	if err != nil {
		return err
	}
	s.notifySession(ctx, sessionID)
	return nil
}

// completeSession marks the winner and ends the session. Shared with
// the resolver's normal completion path.
func completeSession(tx *repository.SessionTx, sess *models.Session, winner *models.SessionMap, now time.Time) error {
	if err := tx.SetWinner(winner.ID); err != nil {
		return err
	}
	id := winner.ID
	sess.WinnerMapID = &id
	sess.Status = models.StatusComplete
	sess.PauseReason = models.PauseNone
	sess.TimerStartedAt = nil
	sess.TimerPausedAt = nil
	sess.TimerExpired = false
	return tx.SaveSession(sess)
}

// Reset moves COMPLETE -> WAITING for a replay: votes are cleared, the
// pool is restored, players keep their slots and tokens.
func (s *LifecycleService) Reset(ctx context.Context, sessionID string) error {
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusComplete {
			return ErrInvalidTransition
		}
		if err := tx.DeleteVotes(); err != nil {
			return err
		}
		if err := tx.ResetAllMaps(); err != nil {
			return err
		}
		if err := tx.ClearVotedFlags(); err != nil {
			return err
		}
		sess.Status = models.StatusWaiting
		sess.CurrentTurn = 0
		sess.CurrentRound = 1
		sess.RevoteCount = 0
		sess.TimerExpired = false
		sess.PauseReason = models.PauseNone
		sess.TimerStartedAt = nil
		sess.TimerPausedAt = nil
		sess.WinnerMapID = nil
		sess.ExpiresAt = s.now().Add(s.tokenTTL)
		if err := tx.SaveSession(sess); err != nil {
			return err
		}
		return tx.Audit(models.ActorAdmin, "", "RESET", nil)
	})
	if err != nil {
		return err
	}
	s.log.Info("Session reset for replay", "session", sessionID)
	s.notifySession(ctx, sessionID)
	return nil
}

// ExpireStale moves idle DRAFT/WAITING sessions past their expiry
// horizon to EXPIRED. Safe to run concurrently or repeatedly: each
// session is re-checked under its own transaction.
func (s *LifecycleService) ExpireStale(ctx context.Context) (int, error) {
	ids, err := s.repo.ListSessionIDsByStatus(ctx, models.StatusDraft, models.StatusWaiting)
	if err != nil {
		return 0, err
	}

	expired := 0
	now := s.now()
	for _, id := range ids {
		err := s.repo.InSession(ctx, id, func(tx *repository.SessionTx) error {
			sess, err := tx.Session()
			if err != nil {
				return err
			}
			if sess.Status != models.StatusDraft && sess.Status != models.StatusWaiting {
				return nil
			}
			if sess.ExpiresAt.After(now) {
				return nil
			}
			sess.Status = models.StatusExpired
			if err := tx.SaveSession(sess); err != nil {
				return err
			}
			expired++
			return tx.Audit(models.ActorSystem, "", "EXPIRE", nil)
		})
		if err != nil {
			// A single failure must not stall the sweep; the next tick
			// re-evaluates from persisted state.
			s.log.Error("Expiry sweep failed for session", "session", id, "error", err)
		}
	}
	if expired > 0 {
		s.log.Info("Expired stale sessions", "count", expired)
	}
	return expired, nil
}
