package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rgadsdon/mapveto/internal/models"
)

// SessionTx scopes a transaction to one session's record set. Every
// state-mutating operation on a session (ban, vote, pause, resume,
// timeout resolution) runs through InSession so that two racing
// submissions cannot both succeed: one commits, the other observes the
// committed state and fails its precondition check.
type SessionTx struct {
	tx        *sql.Tx
	ctx       context.Context
	sessionID string
}

// InSession runs fn inside a transaction scoped to sessionID. The
// transaction is rolled back if fn returns an error and committed
// otherwise. No partial mutation ever survives a failed fn.
func (r *Repository) InSession(ctx context.Context, sessionID string, fn func(tx *SessionTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stx := &SessionTx{tx: tx, ctx: ctx, sessionID: sessionID}
	if err := fn(stx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Session loads the session row
func (t *SessionTx) Session() (*models.Session, error) {
	s, err := scanSession(t.tx.QueryRowContext(t.ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, t.sessionID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

// SaveSession writes back every mutable session field
func (t *SessionTx) SaveSession(s *models.Session) error {
	var started, paused interface{}
	if s.TimerStartedAt != nil {
		started = *s.TimerStartedAt
	}
	if s.TimerPausedAt != nil {
		paused = *s.TimerPausedAt
	}
	var winner interface{}
	if s.WinnerMapID != nil {
		winner = *s.WinnerMapID
	}
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE sessions SET name = ?, status = ?, timer_seconds = ?,
			current_turn = ?, current_round = ?, revote_count = ?,
			timer_expired = ?, pause_reason = ?, timer_started_at = ?,
			timer_paused_at = ?, winner_map_id = ?, expires_at = ?
		WHERE id = ?
	`, s.Name, s.Status, s.TimerSeconds, s.CurrentTurn, s.CurrentRound,
		s.RevoteCount, s.TimerExpired, s.PauseReason, started, paused,
		winner, s.ExpiresAt, t.sessionID)
	return err
}

// Players returns the session's player slots in slot order
func (t *SessionTx) Players() ([]models.SessionPlayer, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+playerColumns+` FROM session_players WHERE session_id = ? ORDER BY slot`, t.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.SessionPlayer
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

// SavePlayer writes back a player's mutable presence/vote state
func (t *SessionTx) SavePlayer(p *models.SessionPlayer) error {
	var lastHeartbeat, disconnectedAt interface{}
	if p.LastHeartbeat != nil {
		lastHeartbeat = *p.LastHeartbeat
	}
	if p.DisconnectedAt != nil {
		disconnectedAt = *p.DisconnectedAt
	}
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE session_players SET team_name = ?, locked_ip = ?, connected = ?,
			last_heartbeat = ?, disconnected_at = ?, has_voted = ?
		WHERE id = ?
	`, p.TeamName, p.LockedIP, p.Connected, lastHeartbeat, disconnectedAt,
		p.HasVoted, p.ID)
	return err
}

// SetPlayerToken assigns an access token and expiry to a slot
func (t *SessionTx) SetPlayerToken(playerID int64, token string, expiresAt time.Time) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE session_players SET token = ?, token_expires_at = ? WHERE id = ?`,
		token, expiresAt, playerID)
	return err
}

// ClearVotedFlags resets has_voted on every player, between rounds
func (t *SessionTx) ClearVotedFlags() error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE session_players SET has_voted = 0 WHERE session_id = ?`, t.sessionID)
	return err
}

// Maps returns the session's map snapshots
func (t *SessionTx) Maps() ([]models.SessionMap, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+sessionMapColumns+` FROM session_maps WHERE session_id = ? ORDER BY id`, t.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []models.SessionMap
	for rows.Next() {
		m, err := scanSessionMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, *m)
	}
	return maps, rows.Err()
}

// BanMap marks a session map BANNED with the given metadata. bannedBy,
// turn and round may be nil depending on the format.
func (t *SessionTx) BanMap(sessionMapID int64, bannedBy *int64, turn, round *int, voteCount int) error {
	var by, bt, br interface{}
	if bannedBy != nil {
		by = *bannedBy
	}
	if turn != nil {
		bt = *turn
	}
	if round != nil {
		br = *round
	}
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE session_maps SET state = ?, banned_by = ?, banned_turn = ?,
			banned_round = ?, vote_count = ?
		WHERE id = ? AND session_id = ?
	`, models.MapBanned, by, bt, br, voteCount, sessionMapID, t.sessionID)
	return err
}

// SetWinner marks a session map as the winner. This transition is
// terminal for the record.
func (t *SessionTx) SetWinner(sessionMapID int64) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE session_maps SET state = ? WHERE id = ? AND session_id = ?`,
		models.MapWinner, sessionMapID, t.sessionID)
	return err
}

// RestoreMaps puts the given session maps back to AVAILABLE, clearing
// ban metadata. Used for revotes after a full deadlock.
func (t *SessionTx) RestoreMaps(sessionMapIDs []int64) error {
	for _, id := range sessionMapIDs {
		if _, err := t.tx.ExecContext(t.ctx, `
			UPDATE session_maps SET state = ?, banned_by = NULL,
				banned_turn = NULL, banned_round = NULL, vote_count = 0
			WHERE id = ? AND session_id = ?
		`, models.MapAvailable, id, t.sessionID); err != nil {
			return err
		}
	}
	return nil
}

// ResetAllMaps restores the entire pool to AVAILABLE. Used by the
// COMPLETE -> WAITING replay reset.
func (t *SessionTx) ResetAllMaps() error {
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE session_maps SET state = ?, banned_by = NULL,
			banned_turn = NULL, banned_round = NULL, vote_count = 0
		WHERE session_id = ?
	`, models.MapAvailable, t.sessionID)
	return err
}

// InsertVote records a vote. Returns ErrDuplicate if the player already
// voted this round; the uniqueness constraint is the last line of
// defense against racing submissions.
func (t *SessionTx) InsertVote(v *models.Vote) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO votes (session_id, player_id, round, session_map_id, by_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.sessionID, v.PlayerID, v.Round, v.SessionMapID, v.ByAdmin, v.CreatedAt)
	if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicate
	}
	return err
}

// VotesForRound returns the votes submitted in the given round
func (t *SessionTx) VotesForRound(round int) ([]models.Vote, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT id, session_id, player_id, round, session_map_id, by_admin, created_at
		FROM votes WHERE session_id = ? AND round = ? ORDER BY id
	`, t.sessionID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.SessionID, &v.PlayerID, &v.Round,
			&v.SessionMapID, &v.ByAdmin, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// DeleteVotes removes all of the session's votes. Only the explicit
// admin reset uses this.
func (t *SessionTx) DeleteVotes() error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM votes WHERE session_id = ?`, t.sessionID)
	return err
}

// Audit appends an entry to the session's audit trail
func (t *SessionTx) Audit(actorType models.ActorType, actorID, action string, details map[string]interface{}) error {
	payload := []byte("{}")
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return err
		}
		payload = data
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO audit_log (session_id, actor_type, actor_id, action, details)
		VALUES (?, ?, ?, ?, ?)
	`, t.sessionID, actorType, actorID, action, string(payload))
	return err
}
