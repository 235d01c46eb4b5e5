package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quietfen/chessd/internal/pgnexport"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// handleGetGameState proxies the match registry's live view of gameID.
// A game that has already ended is no longer tracked live, so this
// reports GAME_NOT_FOUND for it rather than falling back to the
// persistent record — callers after the fact want GET_GAME_HISTORY.
func (d *Dispatcher) handleGetGameState(ctx context.Context, raw []byte) []byte {
	var req chessproto.GetGameStateRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.GameID == 0 {
		return d.errJSON("missing_field", "session_id and game_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	state, ok := d.Matches.GetGameState(req.GameID)
	if !ok {
		return d.errJSON("game_not_found", "")
	}
	if code := d.checkParticipant(req.GameID, callerID); code != "" {
		return d.errJSON(code, "")
	}

	return mustMarshal(state)
}

// handleGetGameHistory answers for the caller by default, or for another
// user_id when given — the original places no ownership restriction on
// this, since the history it returns is already public leaderboard-style
// information.
func (d *Dispatcher) handleGetGameHistory(ctx context.Context, raw []byte) []byte {
	var req chessproto.GetGameHistoryRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" {
		return d.errJSON("missing_field", "session_id is required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	userID := req.UserID
	if userID == 0 {
		userID = callerID
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultGameHistoryLimit
	}

	games := d.Games.ByUser(ctx, userID, limit)
	entries := make([]chessproto.GameHistoryEntry, 0, len(games))
	for _, g := range games {
		var moves []string
		_ = json.Unmarshal([]byte(g.Moves), &moves)

		entry := chessproto.GameHistoryEntry{
			GameID:      g.ID,
			WhiteID:     g.WhitePlayerID,
			BlackID:     g.BlackPlayerID,
			Result:      g.Result.String,
			StartTime:   g.StartTime.UTC().Format(time.RFC3339),
			DurationSec: g.DurationSec.Int64,
			MoveHistory: moves,
		}
		if g.EndTime.Valid {
			entry.EndTime = g.EndTime.Time.UTC().Format(time.RFC3339)
		}
		if san, ok := pgnexport.ToSAN(moves); ok && len(san) > 0 {
			entry.PGN = pgnexport.Build(d.usernameOf(ctx, g.WhitePlayerID), d.usernameOf(ctx, g.BlackPlayerID),
				san, entry.Result, "", g.StartTime)
		}
		entries = append(entries, entry)
	}

	return mustMarshal(chessproto.GameHistory{Type: "GAME_HISTORY", Games: entries})
}

// usernameOf resolves userID to a display name for PGN rendering, falling
// back to a placeholder rather than failing the whole export over a
// missing/deleted account.
func (d *Dispatcher) usernameOf(ctx context.Context, userID int64) string {
	u := d.Users.ByID(ctx, userID)
	if u == nil {
		return "unknown"
	}
	return u.Username
}

func (d *Dispatcher) handleGetLeaderboard(ctx context.Context, raw []byte) []byte {
	var req chessproto.GetLeaderboardRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" {
		return d.errJSON("missing_field", "session_id is required")
	}
	if _, _, ok := d.resolveSession(ctx, req.SessionID); !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	top := d.Users.TopByRating(ctx, limit)
	entries := make([]chessproto.LeaderboardEntry, 0, len(top))
	for i, u := range top {
		entries = append(entries, chessproto.LeaderboardEntry{
			Rank: i + 1, UserID: u.ID, Username: u.Username,
			Rating: u.Rating, Wins: u.Wins, Losses: u.Losses, Draws: u.Draws,
		})
	}

	return mustMarshal(chessproto.Leaderboard{Type: "LEADERBOARD", Entries: entries})
}
