package match

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/chessengine"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// EndGame is the single settlement routine shared by every termination
// path (checkmate, resignation, draw agreement). It persists the
// result, updates ratings and per-user counters, removes the game from
// both maps, and broadcasts GAME_ENDED to both players, white first.
func (r *Registry) EndGame(ctx context.Context, gameID int64, result chessengine.Result, reason string) {
	r.settleAndNotify(ctx, gameID, result, reason, 0, false)
}

// endGameNotifyOnly is EndGame for the disconnect path: the game is
// settled identically, but GAME_ENDED is delivered only to
// survivorID — the disconnected side has no socket left.
func (r *Registry) endGameNotifyOnly(ctx context.Context, gameID int64, result chessengine.Result, reason string, survivorID int64) {
	r.settleAndNotify(ctx, gameID, result, reason, survivorID, true)
}

func (r *Registry) settleAndNotify(ctx context.Context, gameID int64, result chessengine.Result, reason string, onlyNotify int64, restrictNotify bool) {
	r.mu.Lock()
	gi, ok := r.games[gameID]
	if !ok || !gi.Active {
		r.mu.Unlock()
		return
	}
	gi.Active = false
	moveHistory := append([]string(nil), gi.MoveHistory...)
	whiteID, whiteUsername := gi.WhiteID, gi.WhiteUsername
	blackID, blackUsername := gi.BlackID, gi.BlackUsername
	r.mu.Unlock()

	moveLogJSON, err := json.Marshal(moveHistory)
	if err != nil {
		r.logWarn("end_game.marshal_moves", zap.Int64("game_id", gameID), zap.Error(err))
		moveLogJSON = []byte("[]")
	}
	r.finishedGames.End(ctx, gameID, string(result), string(moveLogJSON))

	var winnerID, loserID int64
	var winnerUsername, loserUsername string
	switch result {
	case chessengine.WhiteWin:
		winnerID, winnerUsername = whiteID, whiteUsername
		loserID, loserUsername = blackID, blackUsername
	case chessengine.BlackWin:
		winnerID, winnerUsername = blackID, blackUsername
		loserID, loserUsername = whiteID, whiteUsername
	}
	r.applySettlement(ctx, result, whiteID, blackID, winnerID, loserID)

	msg := chessproto.GameEnded{
		Type: "GAME_ENDED", GameID: gameID, Result: string(result), Reason: reason,
		WinnerUsername: winnerUsername, LoserUsername: loserUsername,
		WhitePlayer: whiteUsername, BlackPlayer: blackUsername,
		MoveCount: len(moveHistory), DurationSeconds: int64(now().Sub(gi.StartTime).Seconds()),
		MoveHistory: moveHistory,
	}

	r.cleanupGame(gameID)

	if restrictNotify {
		if onlyNotify != 0 {
			r.broadcast(onlyNotify, msg)
		}
		return
	}
	var pending []pendingSend
	if whiteID != 0 {
		pending = append(pending, pendingSend{whiteID, msg})
	}
	if blackID != 0 {
		pending = append(pending, pendingSend{blackID, msg})
	}
	r.sendAll(pending)
}

// applySettlement applies the +3/-3 rating delta to a decisive result
// and increments each player's win/loss/draw counters. Zero ids (the
// AI's seat) are skipped — the AI has no user row.
func (r *Registry) applySettlement(ctx context.Context, result chessengine.Result, whiteID, blackID, winnerID, loserID int64) {
	switch result {
	case chessengine.Draw:
		if whiteID != 0 {
			r.users.IncrementDraws(ctx, whiteID)
		}
		if blackID != 0 {
			r.users.IncrementDraws(ctx, blackID)
		}
	case chessengine.WhiteWin, chessengine.BlackWin:
		if winnerID != 0 {
			r.users.IncrementWins(ctx, winnerID)
			r.adjustRating(ctx, winnerID, ratingDelta)
		}
		if loserID != 0 {
			r.users.IncrementLosses(ctx, loserID)
			r.adjustRating(ctx, loserID, -ratingDelta)
		}
	}
}

func (r *Registry) adjustRating(ctx context.Context, userID int64, delta int) {
	u := r.users.ByID(ctx, userID)
	if u == nil {
		r.logWarn("end_game.rating_lookup_failed", zap.Int64("user_id", userID))
		return
	}
	r.users.UpdateRating(ctx, userID, u.Rating+delta)
}

// cleanupGame removes gameID from both game maps, releasing the rule
// engine for garbage collection.
func (r *Registry) cleanupGame(gameID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gi, ok := r.games[gameID]
	if !ok {
		return
	}
	delete(r.games, gameID)
	if gi.WhiteID != 0 {
		delete(r.gameByPlayer, gi.WhiteID)
	}
	if gi.BlackID != 0 {
		delete(r.gameByPlayer, gi.BlackID)
	}
}
