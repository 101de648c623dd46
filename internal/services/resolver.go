package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/rgadsdon/mapveto/internal/logger"
	"github.com/rgadsdon/mapveto/internal/models"
	"github.com/rgadsdon/mapveto/internal/repository"
)

// BanResult describes the outcome of a single ABBA ban.
type BanResult struct {
	SessionMapID int64  `json:"session_map_id"`
	Turn         int    `json:"turn"`
	Complete     bool   `json:"complete"`
	WinnerMapID  *int64 `json:"winner_map_id,omitempty"`
}

// RoundResolution describes the outcome of resolving a Multiplayer round.
type RoundResolution struct {
	Round       int     `json:"round"`
	Eliminated  []int64 `json:"eliminated"`
	Remaining   []int64 `json:"remaining"`
	WinnerMapID *int64  `json:"winner_map_id,omitempty"`
	NeedsRevote bool    `json:"needs_revote"`
}

// VoteResult describes a recorded vote. Resolution is nil until the
// round's last vote lands.
type VoteResult struct {
	Round      int              `json:"round"`
	Resolution *RoundResolution `json:"resolution,omitempty"`
}

// ResolverService applies the format rules: ABBA alternating bans and
// Multiplayer simultaneous voting. All rule checks run inside the
// session transaction, so concurrent submissions serialize and the
// loser fails cleanly.
type ResolverService struct {
	notifier
	now      func() time.Time
	randIntn func(n int) int
}

// NewResolverService creates a new ResolverService
func NewResolverService(log logger.Logger, repo repository.FullRepository) *ResolverService {
	return &ResolverService{
		notifier: notifier{log: log, repo: repo},
		now:      time.Now,
		randIntn: rand.Intn,
	}
}

func (s *ResolverService) resolveToken(ctx context.Context, token string) (*models.SessionPlayer, error) {
	return playerByToken(ctx, s.repo, token, s.now())
}

// PlayerView resolves a token and returns the player's slot together
// with the current session snapshot.
func (s *ResolverService) PlayerView(ctx context.Context, token string) (*models.SessionPlayer, *models.SessionDetail, error) {
	p, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	detail, err := loadDetail(ctx, s.repo, p.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return p, detail, nil
}

// SubmitBan records an ABBA ban by the player behind the token. The
// turn check, map check and ban all run in one transaction; a losing
// racer observes the committed turn and gets ErrNotYourTurn.
func (s *ResolverService) SubmitBan(ctx context.Context, token, ip string, sessionMapID int64) (*BanResult, error) {
	player, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var result *BanResult
	err = s.repo.InSession(ctx, player.SessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress || sess.Format != models.FormatABBA {
			return ErrInvalidState
		}
		p, err := findPlayer(tx, player.ID)
		if err != nil {
			return err
		}
		if err := lockIP(p, ip); err != nil {
			return err
		}
		if err := tx.SavePlayer(p); err != nil {
			return err
		}
		if p.Slot != models.AbbaSlotForTurn(sess.CurrentTurn) {
			return ErrNotYourTurn
		}
		result, err = applyBan(tx, sess, sessionMapID, &p.ID, models.ActorPlayer, p.Slot, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Ban recorded", "session", player.SessionID, "slot", player.Slot, "map", sessionMapID)
	s.notifySession(ctx, player.SessionID)
	return result, nil
}

// applyBan bans one map and advances the ABBA turn, or completes the
// session when only one map is left. Shared with the timeout sweep so
// player bans and system bans cannot diverge.
func applyBan(tx *repository.SessionTx, sess *models.Session, sessionMapID int64, bannedBy *int64, actor models.ActorType, actorID string, now time.Time) (*BanResult, error) {
	maps, err := tx.Maps()
	if err != nil {
		return nil, err
	}
	var target *models.SessionMap
	available := 0
	var last *models.SessionMap
	for i := range maps {
		if maps[i].ID == sessionMapID {
			target = &maps[i]
		}
		if maps[i].State == models.MapAvailable {
			available++
			if maps[i].ID != sessionMapID {
				last = &maps[i]
			}
		}
	}
	if target == nil || target.State != models.MapAvailable {
		return nil, ErrMapUnavailable
	}

	turn := sess.CurrentTurn
	if err := tx.BanMap(sessionMapID, bannedBy, &turn, nil, 0); err != nil {
		return nil, err
	}
	if err := tx.Audit(actor, actorID, "BAN", map[string]interface{}{
		"map":  target.Name,
		"turn": turn,
	}); err != nil {
		return nil, err
	}

	result := &BanResult{SessionMapID: sessionMapID, Turn: turn}
	if available-1 == 1 {
		if err := completeSession(tx, sess, last, now); err != nil {
			return nil, err
		}
		result.Complete = true
		result.WinnerMapID = sess.WinnerMapID
		return result, tx.Audit(models.ActorSystem, "", "WINNER", map[string]interface{}{
			"map": last.Name,
		})
	}

	sess.CurrentTurn++
	startTimer(sess, now)
	return result, tx.SaveSession(sess)
}

// SubmitVote records a Multiplayer elimination vote by the player
// behind the token. When the last outstanding vote lands the round
// resolves in the same transaction.
func (s *ResolverService) SubmitVote(ctx context.Context, token, ip string, sessionMapID int64) (*VoteResult, error) {
	player, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var result *VoteResult
	err = s.repo.InSession(ctx, player.SessionID, func(tx *repository.SessionTx) error {
		p, err := findPlayer(tx, player.ID)
		if err != nil {
			return err
		}
		if err := lockIP(p, ip); err != nil {
			return err
		}
		result, err = s.recordVote(tx, p, sessionMapID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifySession(ctx, player.SessionID)
	return result, nil
}

// SubmitVoteFor records a vote on a player's behalf as an admin proxy,
// typically after that player's timer expired.
func (s *ResolverService) SubmitVoteFor(ctx context.Context, sessionID string, playerID, sessionMapID int64) (*VoteResult, error) {
	var result *VoteResult
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		p, err := findPlayer(tx, playerID)
		if err != nil {
			return err
		}
		var innerErr error
		result, innerErr = s.recordVote(tx, p, sessionMapID, true)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Proxy vote recorded", "session", sessionID, "player", playerID)
	s.notifySession(ctx, sessionID)
	return result, nil
}

// recordVote inserts one vote and resolves the round if it was the
// last one outstanding. The unique (session, player, round) constraint
// backs up the has-voted check against racing submissions.
func (s *ResolverService) recordVote(tx *repository.SessionTx, p *models.SessionPlayer, sessionMapID int64, byAdmin bool) (*VoteResult, error) {
	sess, err := tx.Session()
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusInProgress || sess.Format != models.FormatMultiplayer {
		return nil, ErrInvalidState
	}
	if p.HasVoted {
		return nil, ErrAlreadyVoted
	}
	maps, err := tx.Maps()
	if err != nil {
		return nil, err
	}
	var target *models.SessionMap
	for i := range maps {
		if maps[i].ID == sessionMapID {
			target = &maps[i]
		}
	}
	if target == nil || target.State != models.MapAvailable {
		return nil, ErrMapUnavailable
	}

	err = tx.InsertVote(&models.Vote{
		PlayerID:     p.ID,
		Round:        sess.CurrentRound,
		SessionMapID: sessionMapID,
		ByAdmin:      byAdmin,
		CreatedAt:    s.now(),
	})
	if err == repository.ErrDuplicate {
		return nil, ErrAlreadyVoted
	}
	if err != nil {
		return nil, err
	}
	p.HasVoted = true
	if err := tx.SavePlayer(p); err != nil {
		return nil, err
	}

	actor, actorID := models.ActorPlayer, p.Slot
	if byAdmin {
		actor, actorID = models.ActorAdmin, p.Slot
	}
	if err := tx.Audit(actor, actorID, "VOTE", map[string]interface{}{
		"map":   target.Name,
		"round": sess.CurrentRound,
	}); err != nil {
		return nil, err
	}

	result := &VoteResult{Round: sess.CurrentRound}
	players, err := tx.Players()
	if err != nil {
		return nil, err
	}
	for _, other := range players {
		if !other.HasVoted && other.ID != p.ID {
			return result, nil
		}
	}
	resolution, err := s.resolveRound(tx, sess)
	if err != nil {
		return nil, err
	}
	result.Resolution = resolution
	return result, nil
}

// ResolveRound resolves the current Multiplayer round with whatever
// votes exist, as an explicit admin decision after a timer expiry.
func (s *ResolverService) ResolveRound(ctx context.Context, sessionID string) (*RoundResolution, error) {
	var resolution *RoundResolution
	err := s.repo.InSession(ctx, sessionID, func(tx *repository.SessionTx) error {
		sess, err := tx.Session()
		if err != nil {
			return err
		}
		if sess.Status != models.StatusInProgress || sess.Format != models.FormatMultiplayer {
			return ErrInvalidState
		}
		var innerErr error
		resolution, innerErr = s.resolveRound(tx, sess)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Round resolved by admin", "session", sessionID, "round", resolution.Round)
	s.notifySession(ctx, sessionID)
	return resolution, nil
}

// resolveRound eliminates every voted map, then inspects what is left.
// More than one map left starts the next round; exactly one wins; none
// left is a deadlock, which undoes the bans and reruns the round as a
// revote. A deadlocked revote falls through to a random winner drawn
// from the deadlocked set.
func (s *ResolverService) resolveRound(tx *repository.SessionTx, sess *models.Session) (*RoundResolution, error) {
	votes, err := tx.VotesForRound(sess.CurrentRound)
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, ErrPreconditionFailed
	}

	voteCounts := make(map[int64]int)
	for _, v := range votes {
		voteCounts[v.SessionMapID]++
	}

	maps, err := tx.Maps()
	if err != nil {
		return nil, err
	}
	round := sess.CurrentRound
	resolution := &RoundResolution{Round: round}
	var pool []models.SessionMap
	var survivors []models.SessionMap
	for _, m := range maps {
		if m.State != models.MapAvailable {
			continue
		}
		pool = append(pool, m)
		if n := voteCounts[m.ID]; n > 0 {
			if err := tx.BanMap(m.ID, nil, nil, &round, n); err != nil {
				return nil, err
			}
			resolution.Eliminated = append(resolution.Eliminated, m.ID)
		} else {
			survivors = append(survivors, m)
			resolution.Remaining = append(resolution.Remaining, m.ID)
		}
	}

	switch len(survivors) {
	case 0:
		return resolution, s.resolveDeadlock(tx, sess, pool, resolution)
	case 1:
		if err := completeSession(tx, sess, &survivors[0], s.now()); err != nil {
			return nil, err
		}
		resolution.WinnerMapID = sess.WinnerMapID
		return resolution, tx.Audit(models.ActorSystem, "", "WINNER", map[string]interface{}{
			"map":   survivors[0].Name,
			"round": round,
		})
	default:
		if err := tx.ClearVotedFlags(); err != nil {
			return nil, err
		}
		sess.CurrentRound++
		sess.RevoteCount = 0
		startTimer(sess, s.now())
		if err := tx.SaveSession(sess); err != nil {
			return nil, err
		}
		return resolution, tx.Audit(models.ActorSystem, "", "ROUND_RESOLVED", map[string]interface{}{
			"round":      round,
			"eliminated": len(resolution.Eliminated),
			"remaining":  len(resolution.Remaining),
		})
	}
}

// resolveDeadlock handles a round in which every remaining map drew a
// vote. The first deadlock restores the pool for a revote; a second
// consecutive deadlock picks a winner at random from the same pool.
func (s *ResolverService) resolveDeadlock(tx *repository.SessionTx, sess *models.Session, pool []models.SessionMap, resolution *RoundResolution) error {
	ids := make([]int64, len(pool))
	for i, m := range pool {
		ids[i] = m.ID
	}
	if err := tx.RestoreMaps(ids); err != nil {
		return err
	}

	if sess.RevoteCount >= 1 {
		winner := pool[s.randIntn(len(pool))]
		if err := completeSession(tx, sess, &winner, s.now()); err != nil {
			return err
		}
		resolution.WinnerMapID = sess.WinnerMapID
		return tx.Audit(models.ActorSystem, "", "RANDOM_SELECTION", map[string]interface{}{
			"map":   winner.Name,
			"round": resolution.Round,
			"pool":  len(pool),
		})
	}

	if err := tx.ClearVotedFlags(); err != nil {
		return err
	}
	resolution.NeedsRevote = true
	resolution.Remaining = ids
	sess.RevoteCount++
	sess.CurrentRound++
	startTimer(sess, s.now())
	if err := tx.SaveSession(sess); err != nil {
		return err
	}
	return tx.Audit(models.ActorSystem, "", "REVOTE", map[string]interface{}{
		"round": resolution.Round,
		"pool":  len(pool),
	})
}

// startTimer restarts the turn timer from now
func startTimer(sess *models.Session, now time.Time) {
	sess.TimerStartedAt = &now
	sess.TimerPausedAt = nil
	sess.TimerExpired = false
}

// findPlayer locates a player row inside the transaction
func findPlayer(tx *repository.SessionTx, playerID int64) (*models.SessionPlayer, error) {
	players, err := tx.Players()
	if err != nil {
		return nil, err
	}
	for i := range players {
		if players[i].ID == playerID {
			return &players[i], nil
		}
	}
	return nil, repository.ErrNotFound
}
