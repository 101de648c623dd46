package repository

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rgadsdon/mapveto/internal/errors"
	"github.com/rgadsdon/mapveto/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection; it also gives the
	// single-writer semantics the session transactions rely on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS maps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			image_url TEXT,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			format TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'DRAFT',
			timer_seconds INTEGER NOT NULL DEFAULT 60,
			player_count INTEGER NOT NULL DEFAULT 2,
			current_turn INTEGER NOT NULL DEFAULT 0,
			current_round INTEGER NOT NULL DEFAULT 1,
			revote_count INTEGER NOT NULL DEFAULT 0,
			timer_expired BOOLEAN NOT NULL DEFAULT 0,
			pause_reason TEXT NOT NULL DEFAULT '',
			timer_started_at DATETIME,
			timer_paused_at DATETIME,
			winner_map_id INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_players (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			slot TEXT NOT NULL,
			team_name TEXT NOT NULL DEFAULT '',
			token TEXT UNIQUE,
			token_expires_at DATETIME,
			locked_ip TEXT NOT NULL DEFAULT '',
			connected BOOLEAN NOT NULL DEFAULT 0,
			last_heartbeat DATETIME,
			disconnected_at DATETIME,
			has_voted BOOLEAN NOT NULL DEFAULT 0,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			UNIQUE(session_id, slot)
		)`,
		`CREATE TABLE IF NOT EXISTS session_maps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			map_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			image_url TEXT,
			state TEXT NOT NULL DEFAULT 'AVAILABLE',
			banned_by INTEGER,
			banned_turn INTEGER,
			banned_round INTEGER,
			vote_count INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			UNIQUE(session_id, map_id)
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			player_id INTEGER NOT NULL,
			round INTEGER NOT NULL,
			session_map_id INTEGER NOT NULL,
			by_admin BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			UNIQUE(session_id, player_id, round)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_players_session ON session_players(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_players_token ON session_players(token)`,
		`CREATE INDEX IF NOT EXISTS idx_session_maps_session ON session_maps(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_session_round ON votes(session_id, round)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}

	// Note: base_url is intentionally not set here - it's set by app.go
	// with the detected LAN IP address on startup
	return nil
}

// ==================== Master Map Methods ====================

// ListMaps returns all active master maps
func (r *Repository) ListMaps(ctx context.Context) ([]models.Map, error) {
	return r.listMaps(ctx, `SELECT id, name, image_url, active FROM maps WHERE active = 1 ORDER BY name`)
}

// ListAllMaps returns all master maps including deactivated ones
func (r *Repository) ListAllMaps(ctx context.Context) ([]models.Map, error) {
	return r.listMaps(ctx, `SELECT id, name, image_url, active FROM maps ORDER BY name`)
}

func (r *Repository) listMaps(ctx context.Context, query string) ([]models.Map, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []models.Map
	for rows.Next() {
		var m models.Map
		var imageURL sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &imageURL, &m.Active); err != nil {
			return nil, err
		}
		m.ImageURL = imageURL.String
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// GetMap returns a master map by ID
func (r *Repository) GetMap(ctx context.Context, id int64) (*models.Map, error) {
	var m models.Map
	var imageURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, image_url, active FROM maps WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &imageURL, &m.Active)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("map not found")
	}
	if err != nil {
		return nil, err
	}
	m.ImageURL = imageURL.String
	return &m, nil
}

// GetMapsByIDs returns the active master maps matching the given IDs,
// in the order requested.
func (r *Repository) GetMapsByIDs(ctx context.Context, ids []int64) ([]models.Map, error) {
	maps := make([]models.Map, 0, len(ids))
	for _, id := range ids {
		m, err := r.GetMap(ctx, id)
		if err != nil {
			return nil, err
		}
		if !m.Active {
			return nil, errors.Validationf("map %q is not active", m.Name)
		}
		maps = append(maps, *m)
	}
	return maps, nil
}

// CreateMap creates a master map
func (r *Repository) CreateMap(ctx context.Context, name, imageURL string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO maps (name, image_url, active) VALUES (?, ?, 1)`, name, imageURL)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateMap updates a master map. Session snapshots are unaffected.
func (r *Repository) UpdateMap(ctx context.Context, id int64, name, imageURL string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE maps SET name = ?, image_url = ?, active = ? WHERE id = ?`,
		name, imageURL, active, id)
	return err
}

// DeleteMap soft-deletes a master map
func (r *Repository) DeleteMap(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE maps SET active = 0 WHERE id = ?`, id)
	return err
}

// ==================== Session Methods ====================

const sessionColumns = `id, name, format, status, timer_seconds, player_count,
	current_turn, current_round, revote_count, timer_expired, pause_reason,
	timer_started_at, timer_paused_at, winner_map_id, created_at, expires_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var started, paused sql.NullTime
	var winner sql.NullInt64
	err := row.Scan(&s.ID, &s.Name, &s.Format, &s.Status, &s.TimerSeconds,
		&s.PlayerCount, &s.CurrentTurn, &s.CurrentRound, &s.RevoteCount,
		&s.TimerExpired, &s.PauseReason, &started, &paused, &winner,
		&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if started.Valid {
		t := started.Time
		s.TimerStartedAt = &t
	}
	if paused.Valid {
		t := paused.Time
		s.TimerPausedAt = &t
	}
	if winner.Valid {
		id := winner.Int64
		s.WinnerMapID = &id
	}
	return &s, nil
}

// CreateSession inserts a session row
func (r *Repository) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, format, status, timer_seconds, player_count,
			current_turn, current_round, revote_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.Format, s.Status, s.TimerSeconds, s.PlayerCount,
		s.CurrentTurn, s.CurrentRound, s.RevoteCount, s.CreatedAt, s.ExpiresAt)
	return err
}

// GetSession returns a session by ID
func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("session not found")
	}
	return s, err
}

// ListSessions returns all sessions, newest first
func (r *Repository) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListSessionIDsByStatus returns the IDs of sessions in any of the
// given statuses. Used by the background sweeps.
func (r *Repository) ListSessionIDsByStatus(ctx context.Context, statuses ...models.Status) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT id FROM sessions WHERE status IN (?` + repeat(",?", len(statuses)-1) + `)`
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

// UpdateSessionSettings updates the editable session fields (name,
// turn timer). Callers enforce status preconditions.
func (r *Repository) UpdateSessionSettings(ctx context.Context, id, name string, timerSeconds int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET name = ?, timer_seconds = ? WHERE id = ?`,
		name, timerSeconds, id)
	return err
}

// DeleteSession removes a session and all dependent rows. Only ever
// invoked as an explicit admin action.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE session_id = ?`, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// ==================== Session Player Methods ====================

const playerColumns = `id, session_id, slot, team_name, token, token_expires_at,
	locked_ip, connected, last_heartbeat, disconnected_at, has_voted`

func scanPlayer(row rowScanner) (*models.SessionPlayer, error) {
	var p models.SessionPlayer
	var token sql.NullString
	var tokenExpires, lastHeartbeat, disconnectedAt sql.NullTime
	err := row.Scan(&p.ID, &p.SessionID, &p.Slot, &p.TeamName, &token,
		&tokenExpires, &p.LockedIP, &p.Connected, &lastHeartbeat,
		&disconnectedAt, &p.HasVoted)
	if err != nil {
		return nil, err
	}
	p.Token = token.String
	if tokenExpires.Valid {
		t := tokenExpires.Time
		p.TokenExpiresAt = &t
	}
	if lastHeartbeat.Valid {
		t := lastHeartbeat.Time
		p.LastHeartbeat = &t
	}
	if disconnectedAt.Valid {
		t := disconnectedAt.Time
		p.DisconnectedAt = &t
	}
	return &p, nil
}

// ReplaceSessionPlayers deletes and recreates the player slots for a
// session. Only legal while the session is in DRAFT.
func (r *Repository) ReplaceSessionPlayers(ctx context.Context, sessionID string, slots []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_players WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	for _, slot := range slots {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO session_players (session_id, slot) VALUES (?, ?)`,
			sessionID, slot); err != nil {
			return err
		}
	}
	return nil
}

// ListSessionPlayers returns the player slots for a session in slot order
func (r *Repository) ListSessionPlayers(ctx context.Context, sessionID string) ([]models.SessionPlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM session_players WHERE session_id = ? ORDER BY slot`, sessionID)
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

// GetPlayerByToken resolves an access token to a player slot
func (r *Repository) GetPlayerByToken(ctx context.Context, token string) (*models.SessionPlayer, error) {
	p, err := scanPlayer(r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM session_players WHERE token = ?`, token))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// UpdatePlayerTeam assigns a team name to a slot
func (r *Repository) UpdatePlayerTeam(ctx context.Context, sessionID, slot, teamName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE session_players SET team_name = ? WHERE session_id = ? AND slot = ?`,
		teamName, sessionID, slot)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("no slot %s in session", slot)
	}
	return nil
}

// GetSessionPlayer returns one player row by ID
func (r *Repository) GetSessionPlayer(ctx context.Context, playerID int64) (*models.SessionPlayer, error) {
	p, err := scanPlayer(r.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM session_players WHERE id = ?`, playerID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ==================== Session Map Methods ====================

const sessionMapColumns = `id, session_id, map_id, name, image_url, state,
	banned_by, banned_turn, banned_round, vote_count`

func scanSessionMap(row rowScanner) (*models.SessionMap, error) {
	var m models.SessionMap
	var imageURL sql.NullString
	var bannedBy sql.NullInt64
	var bannedTurn, bannedRound sql.NullInt64
	err := row.Scan(&m.ID, &m.SessionID, &m.MapID, &m.Name, &imageURL,
		&m.State, &bannedBy, &bannedTurn, &bannedRound, &m.VoteCount)
	if err != nil {
		return nil, err
	}
	m.ImageURL = imageURL.String
	if bannedBy.Valid {
		id := bannedBy.Int64
		m.BannedBy = &id
	}
	if bannedTurn.Valid {
		t := int(bannedTurn.Int64)
		m.BannedTurn = &t
	}
	if bannedRound.Valid {
		rd := int(bannedRound.Int64)
		m.BannedRound = &rd
	}
	return &m, nil
}

// ReplaceSessionMaps snapshots a new map pool for a session, replacing
// any previous pool. Only legal while the session is in DRAFT.
func (r *Repository) ReplaceSessionMaps(ctx context.Context, sessionID string, maps []models.Map) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_maps WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	for _, m := range maps {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO session_maps (session_id, map_id, name, image_url, state)
			VALUES (?, ?, ?, ?, ?)
		`, sessionID, m.ID, m.Name, m.ImageURL, models.MapAvailable); err != nil {
			return err
		}
	}
	return nil
}

// ListSessionMaps returns the snapshotted pool for a session
func (r *Repository) ListSessionMaps(ctx context.Context, sessionID string) ([]models.SessionMap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionMapColumns+` FROM session_maps WHERE session_id = ? ORDER BY id`, sessionID)
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

// ==================== Audit Methods ====================

// ListAudit returns the audit trail for a session, oldest first
func (r *Repository) ListAudit(ctx context.Context, sessionID string) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, actor_type, actor_id, action, details, created_at
		FROM audit_log WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var details string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ActorType, &e.ActorID,
			&e.Action, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Details = []byte(details)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ==================== Settings Methods ====================

// GetSetting retrieves a setting value
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting updates a setting value
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// ==================== Stats Methods ====================

// GetStats returns overall counts for the admin dashboard
func (r *Repository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := []struct {
		key   string
		query string
	}{
		{"total_sessions", `SELECT COUNT(*) FROM sessions`},
		{"active_sessions", `SELECT COUNT(*) FROM sessions WHERE status IN ('IN_PROGRESS', 'PAUSED')`},
		{"completed_sessions", `SELECT COUNT(*) FROM sessions WHERE status = 'COMPLETE'`},
		{"total_votes", `SELECT COUNT(*) FROM votes`},
		{"total_maps", `SELECT COUNT(*) FROM maps WHERE active = 1`},
	}
	for _, c := range counts {
		var n int
		if err := r.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, err
		}
		stats[c.key] = n
	}
	return stats, nil
}
