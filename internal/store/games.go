package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Game mirrors a row of the game_history table. Moves is the JSON-encoded
// array of move tokens played so far, kept as a string end to end so
// append_move never needs a full unmarshal/remarshal of anything but
// itself.
type Game struct {
	ID             int64        `db:"game_id"`
	WhitePlayerID  int64        `db:"white_player_id"`
	BlackPlayerID  int64        `db:"black_player_id"`
	Result         sql.NullString `db:"result"`
	Moves          string       `db:"moves"`
	StartTime      time.Time    `db:"start_time"`
	EndTime        sql.NullTime `db:"end_time"`
	DurationSec    sql.NullInt64 `db:"duration"`
}

// GameStore is the adapter over the game_history table.
type GameStore struct {
	db *DB
}

func NewGameStore(db *DB) *GameStore { return &GameStore{db: db} }

// Create inserts a new in-progress game row and returns its id, or -1 on
// failure.
func (s *GameStore) Create(ctx context.Context, whiteID, blackID int64) int64 {
	var id int64
	err := s.db.conn.GetContext(ctx, &id,
		`INSERT INTO game_history (white_player_id, black_player_id, moves)
		 VALUES ($1, $2, '[]') RETURNING game_id`,
		whiteID, blackID)
	if err != nil {
		logFailure("games.create", err, zap.Int64("white_id", whiteID), zap.Int64("black_id", blackID))
		return -1
	}
	return id
}

// AppendMove reads the current move log, appends move, and writes the
// array back as JSON, in one transaction that locks the row with
// SELECT ... FOR UPDATE, so concurrent appends to the same game_id are
// serialized by the database.
func (s *GameStore) AppendMove(ctx context.Context, gameID int64, move string) bool {
	tx, err := s.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		logFailure("games.append_move.begin", err, zap.Int64("game_id", gameID))
		return false
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.GetContext(ctx, &raw, `SELECT moves FROM game_history WHERE game_id = $1 FOR UPDATE`, gameID); err != nil {
		logFailure("games.append_move.select", err, zap.Int64("game_id", gameID))
		return false
	}

	var moves []string
	if err := json.Unmarshal([]byte(raw), &moves); err != nil {
		logFailure("games.append_move.unmarshal", err, zap.Int64("game_id", gameID))
		return false
	}
	moves = append(moves, move)
	encoded, err := json.Marshal(moves)
	if err != nil {
		logFailure("games.append_move.marshal", err, zap.Int64("game_id", gameID))
		return false
	}

	if _, err := tx.ExecContext(ctx, `UPDATE game_history SET moves = $2 WHERE game_id = $1`, gameID, string(encoded)); err != nil {
		logFailure("games.append_move.update", err, zap.Int64("game_id", gameID))
		return false
	}
	if err := tx.Commit(); err != nil {
		logFailure("games.append_move.commit", err, zap.Int64("game_id", gameID))
		return false
	}
	return true
}

// End finalizes a game: sets result, the full move log, end_time = now,
// and duration in seconds since start_time.
func (s *GameStore) End(ctx context.Context, gameID int64, result string, moveLogJSON string) bool {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE game_history
		   SET result = $2, moves = $3, end_time = now(),
		       duration = EXTRACT(EPOCH FROM (now() - start_time))::integer
		 WHERE game_id = $1`,
		gameID, result, moveLogJSON)
	if err != nil {
		logFailure("games.end", err, zap.Int64("game_id", gameID))
		return false
	}
	return true
}

func (s *GameStore) ByID(ctx context.Context, gameID int64) *Game {
	var g Game
	err := s.db.conn.GetContext(ctx, &g, `SELECT * FROM game_history WHERE game_id = $1`, gameID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logFailure("games.by_id", err, zap.Int64("game_id", gameID))
		}
		return nil
	}
	return &g
}

// ByUser returns at most limit games in which userID played either
// color, most recently started first.
func (s *GameStore) ByUser(ctx context.Context, userID int64, limit int) []*Game {
	var games []*Game
	err := s.db.conn.SelectContext(ctx, &games,
		`SELECT * FROM game_history
		  WHERE white_player_id = $1 OR black_player_id = $1
		  ORDER BY start_time DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		logFailure("games.by_user", err, zap.Int64("user_id", userID))
		return nil
	}
	return games
}

// Recent returns the most recently started limit games, any players.
func (s *GameStore) Recent(ctx context.Context, limit int) []*Game {
	var games []*Game
	err := s.db.conn.SelectContext(ctx, &games,
		`SELECT * FROM game_history ORDER BY start_time DESC LIMIT $1`, limit)
	if err != nil {
		logFailure("games.recent", err)
		return nil
	}
	return games
}

// Between returns every game played between users a and b, either color
// pairing, most recent first.
func (s *GameStore) Between(ctx context.Context, a, b int64) []*Game {
	var games []*Game
	err := s.db.conn.SelectContext(ctx, &games,
		`SELECT * FROM game_history
		  WHERE (white_player_id = $1 AND black_player_id = $2)
		     OR (white_player_id = $2 AND black_player_id = $1)
		  ORDER BY start_time DESC`,
		a, b)
	if err != nil {
		logFailure("games.between", err, zap.Int64("a", a), zap.Int64("b", b))
		return nil
	}
	return games
}

func (s *GameStore) Exists(ctx context.Context, gameID int64) bool {
	var n int
	err := s.db.conn.GetContext(ctx, &n, `SELECT count(*) FROM game_history WHERE game_id = $1`, gameID)
	if err != nil {
		logFailure("games.exists", err, zap.Int64("game_id", gameID))
		return false
	}
	return n > 0
}

func (s *GameStore) Delete(ctx context.Context, gameID int64) bool {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM game_history WHERE game_id = $1`, gameID)
	if err != nil {
		logFailure("games.delete", err, zap.Int64("game_id", gameID))
		return false
	}
	return true
}

// Stats is the stats(user_id) aggregate: win/loss/draw counts plus total
// games played, derived from game_history rather than the users table's
// cached counters so it stays correct even if a counter update failed.
type Stats struct {
	Wins   int
	Losses int
	Draws  int
	Total  int
}

type statsRow struct {
	Wins   int `db:"wins"`
	Losses int `db:"losses"`
	Draws  int `db:"draws"`
}

func (s *GameStore) Stats(ctx context.Context, userID int64) *Stats {
	var row statsRow
	err := s.db.conn.GetContext(ctx, &row,
		`SELECT
		   count(*) FILTER (WHERE
		     (white_player_id = $1 AND result = 'WHITE_WIN') OR
		     (black_player_id = $1 AND result = 'BLACK_WIN')) AS wins,
		   count(*) FILTER (WHERE
		     (white_player_id = $1 AND result = 'BLACK_WIN') OR
		     (black_player_id = $1 AND result = 'WHITE_WIN')) AS losses,
		   count(*) FILTER (WHERE result = 'DRAW') AS draws
		 FROM game_history
		 WHERE white_player_id = $1 OR black_player_id = $1`,
		userID)
	if err != nil {
		logFailure("games.stats", err, zap.Int64("user_id", userID))
		return nil
	}
	return &Stats{Wins: row.Wins, Losses: row.Losses, Draws: row.Draws, Total: row.Wins + row.Losses + row.Draws}
}
