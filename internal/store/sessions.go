package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Session mirrors a row of the active_sessions table.
type Session struct {
	Token        string    `db:"session_id"`
	UserID       int64     `db:"user_id"`
	LoginTime    time.Time `db:"login_time"`
	LastActivity time.Time `db:"last_activity"`
	IPAddress    sql.NullString `db:"ip_address"`
}

// SessionStore is the adapter over active_sessions. Per spec, a user may
// have at most one row at a time: Create replaces any prior row for the
// same user inside one transaction.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore { return &SessionStore{db: db} }

// Create deletes any existing row for userID, then inserts token as the
// sole active session for that user. Returns false on failure.
func (s *SessionStore) Create(ctx context.Context, token string, userID int64, ip string) bool {
	tx, err := s.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		logFailure("sessions.create.begin", err, zap.Int64("user_id", userID))
		return false
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM active_sessions WHERE user_id = $1`, userID); err != nil {
		logFailure("sessions.create.delete_existing", err, zap.Int64("user_id", userID))
		return false
	}

	var ipArg any
	if ip != "" {
		ipArg = ip
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO active_sessions (session_id, user_id, ip_address) VALUES ($1, $2, $3)`,
		token, userID, ipArg); err != nil {
		logFailure("sessions.create.insert", err, zap.Int64("user_id", userID))
		return false
	}

	if err := tx.Commit(); err != nil {
		logFailure("sessions.create.commit", err, zap.Int64("user_id", userID))
		return false
	}
	return true
}

// Verify reports whether token names a currently active session row.
func (s *SessionStore) Verify(ctx context.Context, token string) bool {
	var n int
	err := s.db.conn.GetContext(ctx, &n, `SELECT count(*) FROM active_sessions WHERE session_id = $1`, token)
	if err != nil {
		logFailure("sessions.verify", err)
		return false
	}
	return n > 0
}

// Touch refreshes token's last_activity timestamp to now.
func (s *SessionStore) Touch(ctx context.Context, token string) bool {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE active_sessions SET last_activity = now() WHERE session_id = $1`, token)
	if err != nil {
		logFailure("sessions.touch", err)
		return false
	}
	return true
}

func (s *SessionStore) Delete(ctx context.Context, token string) bool {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM active_sessions WHERE session_id = $1`, token)
	if err != nil {
		logFailure("sessions.delete", err)
		return false
	}
	return true
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID int64) bool {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM active_sessions WHERE user_id = $1`, userID)
	if err != nil {
		logFailure("sessions.delete_by_user", err, zap.Int64("user_id", userID))
		return false
	}
	return true
}

// Cleanup deletes every session whose last_activity is older than
// timeoutSeconds ago and returns how many rows were removed (0 on error).
func (s *SessionStore) Cleanup(ctx context.Context, timeoutSeconds int) int {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM active_sessions WHERE now() - last_activity > ($1 || ' seconds')::interval`,
		timeoutSeconds)
	if err != nil {
		logFailure("sessions.cleanup", err)
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		logFailure("sessions.cleanup.rows_affected", err)
		return 0
	}
	return int(n)
}

func (s *SessionStore) HasActive(ctx context.Context, userID int64) bool {
	var n int
	err := s.db.conn.GetContext(ctx, &n, `SELECT count(*) FROM active_sessions WHERE user_id = $1`, userID)
	if err != nil {
		logFailure("sessions.has_active", err, zap.Int64("user_id", userID))
		return false
	}
	return n > 0
}

// TokenByUser returns userID's active session token, or "" if none.
func (s *SessionStore) TokenByUser(ctx context.Context, userID int64) string {
	var token string
	err := s.db.conn.GetContext(ctx, &token, `SELECT session_id FROM active_sessions WHERE user_id = $1`, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("sessions.token_by_user", err, zap.Int64("user_id", userID))
		}
		return ""
	}
	return token
}

// Info returns the full session row for token, or nil.
func (s *SessionStore) Info(ctx context.Context, token string) *Session {
	var sess Session
	err := s.db.conn.GetContext(ctx, &sess, `SELECT * FROM active_sessions WHERE session_id = $1`, token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("sessions.info", err)
		}
		return nil
	}
	return &sess
}

// sessionUser is the join row InfoWithUsername reads: a session's owner
// id plus their username, for reinstating a cache entry without a
// separate round trip to the users table.
type sessionUser struct {
	UserID   int64  `db:"user_id"`
	Username string `db:"username"`
}

// InfoWithUsername returns token's owning user id and username, or
// 0, "", false if token names no active session.
func (s *SessionStore) InfoWithUsername(ctx context.Context, token string) (userID int64, username string, ok bool) {
	var row sessionUser
	err := s.db.conn.GetContext(ctx, &row,
		`SELECT s.user_id, u.username FROM active_sessions s
		 JOIN users u ON u.user_id = s.user_id
		 WHERE s.session_id = $1`, token)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("sessions.info_with_username", err)
		}
		return 0, "", false
	}
	return row.UserID, row.Username, true
}

func (s *SessionStore) Count(ctx context.Context) int {
	var n int
	err := s.db.conn.GetContext(ctx, &n, `SELECT count(*) FROM active_sessions`)
	if err != nil {
		logFailure("sessions.count", err)
		return 0
	}
	return n
}
