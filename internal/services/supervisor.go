package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// CountdownState is the timer snapshot pushed to clients every tick.
// All times derive from persisted timestamps, never from in-memory
// countdowns, so a restarted server reports the same numbers.
type CountdownState struct {
	SessionID        string        `json:"session_id"`
	Status           models.Status `json:"status"`
	RemainingSeconds int           `json:"remaining_seconds"`
	TimerExpired     bool          `json:"timer_expired"`
	GraceSeconds     *int          `json:"grace_seconds,omitempty"`
}

// SupervisorService watches the clock for every active session:
// heartbeats, turn-timer expiry and player disconnects. Sweeps are
// idempotent and re-check status inside each session's transaction, so
// overlapping or repeated runs are harmless.
type SupervisorService struct {
	notifier
	heartbeatThreshold time.Duration
	gracePeriod        time.Duration
	now                func() time.Time
	randIntn           func(n int) int
}

// NewSupervisorService creates a new SupervisorService
func NewSupervisorService(log logger.Logger, repo repository.FullRepository, heartbeatThreshold, gracePeriod time.Duration) *SupervisorService {
	return &SupervisorService{
		notifier:           notifier{log: log, repo: repo},
		heartbeatThreshold: heartbeatThreshold,
		gracePeriod:        gracePeriod,
		now:                time.Now,
		randIntn:           rand.Intn,
	}
}

// Heartbeat records presence for the player behind the token. The
// first heartbeat from a new address locks the player to it. A
// reconnect after a disconnect pause resumes the session once every
// player is back.
func (s *SupervisorService) Heartbeat(ctx context.Context, token, ip string) error {
	player, err := playerByToken(ctx, s.repo, token, s.now())
	if err != nil {
		return err
	}

	changed := false
	err = s.repo.InSession(ctx, player.SessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status.Terminal() {
			return ErrInvalidState
		}
		players, err := tx.Players()
		if err != nil {
			return err
		}
		var p *models.SessionPlayer
		allConnected := true
		for i := range players {
			if players[i].ID == player.ID {
				p = &players[i]
			} else if !players[i].Connected {
				allConnected = false
			}
		}
		if p == nil {
			return repository.ErrNotFound
		}
		if err := lockIP(p, ip); err != nil {
			return err
		}

		now := s.now()
		wasConnected := p.Connected
		p.Connected = true
		p.LastHeartbeat = &now
		p.DisconnectedAt = nil
		if err := tx.SavePlayer(p); err != nil {
			return err
		}
		if !wasConnected {
			changed = true
			if err := tx.Audit(models.ActorPlayer, p.Slot, "CONNECT", nil); err != nil {
				return err
			}
		}

		// Only disconnect pauses self-heal; an admin pause stays until
		// the admin resumes it.
		if sess.Status == models.StatusPaused && sess.PauseReason == models.PauseDisconnect && allConnected {
			resumeTimer(sess, now)
			if err := tx.SaveSession(sess); err != nil {
				return err
			}
			changed = true
			return tx.Audit(models.ActorSystem, "", "RESUME", nil)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.notifySession(ctx, player.SessionID)
	}
	return nil
}

// SweepTimeouts handles expired turn timers. An ABBA timeout bans a
// random available map on the current player's behalf and play moves
// on; a Multiplayer timeout only raises the expiry flag and leaves the
// decision to the operator.
func (s *SupervisorService) SweepTimeouts(ctx context.Context) (int, error) {
	ids, err := s.repo.ListSessionIDsByStatus(ctx, models.StatusInProgress)
	if err != nil {
		return 0, err
	}

	acted := 0
	for _, id := range ids {
		handled := false
		err := s.repo.InSession(ctx, id, func(tx *repository.SessionTx) error {
			sess, err := tx.Session()
			if err != nil {
				return err
			}
			if sess.Status != models.StatusInProgress || sess.TimerStartedAt == nil {
				return nil
			}
			deadline := sess.TimerStartedAt.Add(time.Duration(sess.TimerSeconds) * time.Second)
			if s.now().Before(deadline) {
				return nil
			}

			switch sess.Format {
			case models.FormatABBA:
				return s.timeoutBan(tx, sess, &handled)
			case models.FormatMultiplayer:
				if sess.TimerExpired {
					return nil
				}
				sess.TimerExpired = true
				if err := tx.SaveSession(sess); err != nil {
					return err
				}
				handled = true
				return tx.Audit(models.ActorSystem, "", "TIMEOUT", map[string]interface{}{
					"round": sess.CurrentRound,
				})
			}
			return nil
		})
		if err != nil {
			s.log.Error("Timeout sweep failed for session", "session", id, "error", err)
			continue
		}
		if handled {
			acted++
			s.notifySession(ctx, id)
		}
	}
	return acted, nil
}

// timeoutBan bans a random available map for the slot that let the
// timer run out, using the same path as a player-submitted ban.
func (s *SupervisorService) timeoutBan(tx *repository.SessionTx, sess *models.Session, handled *bool) error {
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
	if len(available) < 2 {
		return nil
	}
	slot := models.AbbaSlotForTurn(sess.CurrentTurn)
	if err := tx.Audit(models.ActorSystem, "", "TIMEOUT", map[string]interface{}{
		"slot": slot,
		"turn": sess.CurrentTurn,
	}); err != nil {
		return err
	}
	target := available[s.randIntn(len(available))]
	if _, err := applyBan(tx, sess, target.ID, nil, models.ActorSystem, slot, s.now()); err != nil {
		return err
	}
	*handled = true
	return nil
}

// SweepHeartbeats marks players whose heartbeat went stale as
// disconnected and pauses their in-progress session until they return.
func (s *SupervisorService) SweepHeartbeats(ctx context.Context) (int, error) {
	ids, err := s.repo.ListSessionIDsByStatus(ctx, models.StatusWaiting, models.StatusInProgress)
	if err != nil {
		return 0, err
	}

	acted := 0
	cutoff := s.now().Add(-s.heartbeatThreshold)
	for _, id := range ids {
		changed := false
		err := s.repo.InSession(ctx, id, func(tx *repository.SessionTx) error {
			sess, err := tx.Session()
			if err != nil {
				return err
			}
			if sess.Status != models.StatusWaiting && sess.Status != models.StatusInProgress {
				return nil
			}
			players, err := tx.Players()
			if err != nil {
				return err
			}
			now := s.now()
			dropped := 0
			for i := range players {
				p := &players[i]
				if !p.Connected {
					continue
				}
				if p.LastHeartbeat != nil && p.LastHeartbeat.After(cutoff) {
					continue
				}
				p.Connected = false
				p.DisconnectedAt = &now
				if err := tx.SavePlayer(p); err != nil {
					return err
				}
				if err := tx.Audit(models.ActorSystem, p.Slot, "DISCONNECT", nil); err != nil {
					return err
				}
				dropped++
			}
			if dropped == 0 {
				return nil
			}
			changed = true
			if sess.Status == models.StatusInProgress {
				sess.Status = models.StatusPaused
				sess.PauseReason = models.PauseDisconnect
				sess.TimerPausedAt = &now
				if err := tx.SaveSession(sess); err != nil {
					return err
				}
				return tx.Audit(models.ActorSystem, "", "PAUSE", map[string]interface{}{
					"reason": string(models.PauseDisconnect),
				})
			}
			return nil
		})
		if err != nil {
			s.log.Error("Heartbeat sweep failed for session", "session", id, "error", err)
			continue
		}
		if changed {
			acted++
			s.notifySession(ctx, id)
		}
	}
	return acted, nil
}

// Countdown reports the timer state for one session, derived from
// persisted timestamps.
func (s *SupervisorService) Countdown(ctx context.Context, sessionID string) (*CountdownState, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := &CountdownState{
		SessionID:        sess.ID,
		Status:           sess.Status,
		RemainingSeconds: remainingSeconds(sess, s.now()),
		TimerExpired:     sess.TimerExpired,
	}
	if sess.Status == models.StatusPaused && sess.PauseReason == models.PauseDisconnect {
		players, err := s.repo.ListSessionPlayers(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if g := s.graceRemaining(players); g != nil {
			state.GraceSeconds = g
		}
	}
	return state, nil
}

// graceRemaining reports how much of the disconnect grace window is
// left, counted from the earliest still-disconnected player. It is
// informational only; nothing resumes or ends a session automatically
// when it reaches zero.
func (s *SupervisorService) graceRemaining(players []models.SessionPlayer) *int {
	var earliest *time.Time
	for i := range players {
		p := &players[i]
		if p.Connected || p.DisconnectedAt == nil {
			continue
		}
		if earliest == nil || p.DisconnectedAt.Before(*earliest) {
			earliest = p.DisconnectedAt
		}
	}
	if earliest == nil {
		return nil
	}
	remaining := int(s.gracePeriod.Seconds() - s.now().Sub(*earliest).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// remainingSeconds computes the seconds left on the turn timer. A
// paused timer reports the value frozen at the pause point.
func remainingSeconds(sess *models.Session, now time.Time) int {
	if sess.TimerStartedAt == nil {
		return 0
	}
	ref := now
	if sess.TimerPausedAt != nil {
		ref = *sess.TimerPausedAt
	}
	remaining := sess.TimerSeconds - int(ref.Sub(*sess.TimerStartedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
