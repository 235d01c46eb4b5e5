package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
)

// User mirrors a row of the users table.
type User struct {
	ID           int64     `db:"user_id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Email        sql.NullString `db:"email"`
	CreatedAt    time.Time `db:"created_at"`
	Wins         int       `db:"wins"`
	Losses       int       `db:"losses"`
	Draws        int       `db:"draws"`
	Rating       int       `db:"rating"`
}

// UserStore is the adapter over the users table. Every method logs the
// underlying error (if any) and returns its documented sentinel rather
// than propagating; callers treat the sentinel as "operation failed".
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore { return &UserStore{db: db} }

// Create inserts a new user and returns its id, or -1 on failure
// (including a duplicate username).
func (s *UserStore) Create(ctx context.Context, username, credential, email string) int64 {
	var id int64
	var emailArg any
	if email != "" {
		emailArg = email
	}
	err := s.db.conn.GetContext(ctx, &id,
		`INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3) RETURNING user_id`,
		username, credential, emailArg)
	if err != nil {
		logFailure("users.create", err, zap.String("username", username))
		return -1
	}
	return id
}

// ByID returns the user with the given id, or nil if absent or on error.
func (s *UserStore) ByID(ctx context.Context, id int64) *User {
	var u User
	err := s.db.conn.GetContext(ctx, &u, `SELECT * FROM users WHERE user_id = $1`, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("users.by_id", err, zap.Int64("user_id", id))
		}
		return nil
	}
	return &u
}

// ByUsername returns the user with the given username, or nil.
func (s *UserStore) ByUsername(ctx context.Context, username string) *User {
	var u User
	err := s.db.conn.GetContext(ctx, &u, `SELECT * FROM users WHERE username = $1`, username)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("users.by_username", err, zap.String("username", username))
		}
		return nil
	}
	return &u
}

// Authenticate returns the id of the user whose username and credential
// both match exactly, or -1 if no such row exists.
func (s *UserStore) Authenticate(ctx context.Context, username, credential string) int64 {
	var id int64
	err := s.db.conn.GetContext(ctx, &id,
		`SELECT user_id FROM users WHERE username = $1 AND password_hash = $2`,
		username, credential)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("users.authenticate", err, zap.String("username", username))
		}
		return -1
	}
	return id
}

// Exists reports whether a user with this username is already registered.
func (s *UserStore) Exists(ctx context.Context, username string) bool {
	var n int
	err := s.db.conn.GetContext(ctx, &n, `SELECT count(*) FROM users WHERE username = $1`, username)
	if err != nil {
		logFailure("users.exists", err, zap.String("username", username))
		return false
	}
	return n > 0
}

func (s *UserStore) IncrementWins(ctx context.Context, id int64) {
	s.incrementCounter(ctx, id, "wins")
}

func (s *UserStore) IncrementLosses(ctx context.Context, id int64) {
	s.incrementCounter(ctx, id, "losses")
}

func (s *UserStore) IncrementDraws(ctx context.Context, id int64) {
	s.incrementCounter(ctx, id, "draws")
}

func (s *UserStore) incrementCounter(ctx context.Context, id int64, column string) {
	query := `UPDATE users SET ` + column + ` = ` + column + ` + 1 WHERE user_id = $1`
	if _, err := s.db.conn.ExecContext(ctx, query, id); err != nil {
		logFailure("users.increment_"+column, err, zap.Int64("user_id", id))
	}
}

// UpdateRating sets the absolute rating value (callers compute the delta).
func (s *UserStore) UpdateRating(ctx context.Context, id int64, rating int) {
	if _, err := s.db.conn.ExecContext(ctx,
		`UPDATE users SET rating = $2 WHERE user_id = $1`, id, rating); err != nil {
		logFailure("users.update_rating", err, zap.Int64("user_id", id))
	}
}

// TopByRating returns at most limit users, highest rating first.
func (s *UserStore) TopByRating(ctx context.Context, limit int) []*User {
	return s.selectOrdered(ctx, `SELECT * FROM users ORDER BY rating DESC LIMIT $1`, limit)
}

// AllOrderedByRatingDesc returns every user ordered by rating, used by
// the dispatcher to compute a caller's position for the windowed
// available-players view.
func (s *UserStore) AllOrderedByRatingDesc(ctx context.Context) []*User {
	return s.selectOrdered(ctx, `SELECT * FROM users ORDER BY rating DESC, user_id ASC`)
}

func (s *UserStore) selectOrdered(ctx context.Context, query string, args ...any) []*User {
	var users []*User
	if err := s.db.conn.SelectContext(ctx, &users, query, args...); err != nil {
		logFailure("users.select_ordered", err)
		return nil
	}
	return users
}
