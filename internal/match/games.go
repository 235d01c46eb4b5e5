package match

import (
	"context"

	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/chessengine"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// createGame allocates a finished-game row, installs a fresh rule
// engine, and registers the new GameInstance in both game maps.
func (r *Registry) createGame(ctx context.Context, whiteID int64, whiteUsername string, blackID int64, blackUsername string) (int64, bool) {
	gameID := r.finishedGames.Create(ctx, whiteID, blackID)
	if gameID < 0 {
		r.logWarn("create_game.persist_failed", zap.Int64("white_id", whiteID), zap.Int64("black_id", blackID))
		return 0, false
	}

	gi := &GameInstance{
		ID:            gameID,
		WhiteID:       whiteID,
		WhiteUsername: whiteUsername,
		BlackID:       blackID,
		BlackUsername: blackUsername,
		Engine:        chessengine.NewGame(),
		StartTime:     now(),
		Active:        true,
	}

	r.mu.Lock()
	r.games[gameID] = gi
	r.gameByPlayer[whiteID] = gameID
	r.gameByPlayer[blackID] = gameID
	r.mu.Unlock()

	return gameID, true
}

// CreateAIGame starts a game between humanID and the built-in adversary
// at the given search depth. humanColor picks the human's side; the AI
// takes the other. There is no challenge step for this path — it is the
// AI_CHALLENGE request's direct effect.
func (r *Registry) CreateAIGame(ctx context.Context, humanID int64, humanUsername string, humanColor chessengine.Color, aiDepth int) (int64, bool) {
	var whiteID, blackID int64
	var whiteUsername, blackUsername string
	if humanColor == chessengine.White {
		whiteID, whiteUsername = humanID, humanUsername
		blackID, blackUsername = 0, "AI"
	} else {
		whiteID, whiteUsername = 0, "AI"
		blackID, blackUsername = humanID, humanUsername
	}

	gameID := r.finishedGames.Create(ctx, whiteID, blackID)
	if gameID < 0 {
		r.logWarn("create_ai_game.persist_failed", zap.Int64("human_id", humanID))
		return 0, false
	}

	gi := &GameInstance{
		ID:            gameID,
		WhiteID:       whiteID,
		WhiteUsername: whiteUsername,
		BlackID:       blackID,
		BlackUsername: blackUsername,
		Engine:        chessengine.NewGame(),
		StartTime:     now(),
		Active:        true,
		AI:            chessengine.NewAI(aiDepth),
		AIColor:       humanColor.Opponent(),
		HasAI:         true,
	}

	r.mu.Lock()
	r.games[gameID] = gi
	r.gameByPlayer[humanID] = gameID
	r.mu.Unlock()

	r.broadcast(humanID, chessproto.MatchStarted{
		Type: "MATCH_STARTED", GameID: gameID, YourColor: colorName(humanColor),
		OpponentID: 0, OpponentUsername: "AI",
	})

	if humanColor == chessengine.Black {
		// AI plays white and moves first.
		r.driveAIMove(ctx, gi)
	}
	return gameID, true
}

func colorName(c chessengine.Color) string {
	if c == chessengine.White {
		return "white"
	}
	return "black"
}

// GetGame returns the live game by id, or nil.
func (r *Registry) GetGame(gameID int64) *GameInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games[gameID]
}

// GetGameByPlayer returns the live game userID is currently in, or nil.
func (r *Registry) GetGameByPlayer(userID int64) *GameInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	gameID, ok := r.gameByPlayer[userID]
	if !ok {
		return nil
	}
	return r.games[gameID]
}

// GetGameIDByPlayer returns the id of the live game userID is in, or
// 0, false.
func (r *Registry) GetGameIDByPlayer(userID int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.gameByPlayer[userID]
	return id, ok
}

// MakeMove validates the move belongs to the caller and is their turn,
// applies it, persists it, and fans out MOVE_ACCEPTED / OPPONENT_MOVE.
// If the move ends the game, settlement runs before returning. If the
// game has an AI side and it is now the AI's turn, the AI replies
// synchronously before MakeMove returns.
func (r *Registry) MakeMove(ctx context.Context, gameID, playerID int64, move string) (accepted bool, rejectReason string) {
	r.mu.Lock()
	gi, ok := r.games[gameID]
	if !ok || !gi.Active {
		r.mu.Unlock()
		return false, "game_not_active"
	}
	color, inGame := gi.colorOf(playerID)
	if !inGame {
		r.mu.Unlock()
		return false, "not_a_player"
	}
	if gi.Engine.SideToMove() != color {
		r.mu.Unlock()
		return false, "not_your_turn"
	}
	if !gi.Engine.Move(move) {
		r.mu.Unlock()
		return false, "illegal_move"
	}
	gi.MoveHistory = append(gi.MoveHistory, move)
	ended := gi.Engine.IsEnded()
	fen := gi.Engine.FEN()
	nextColor := gi.Engine.SideToMove()
	isCheck := gi.Engine.IsKingInCheck(nextColor)
	moveNumber := len(gi.MoveHistory)
	opponentID := gi.idOf(color.Opponent())
	r.mu.Unlock()

	r.finishedGames.AppendMove(ctx, gameID, move)

	r.broadcast(playerID, chessproto.MoveAccepted{
		Type: "MOVE_ACCEPTED", GameID: gameID, Move: move, FEN: fen,
		NextToMove: colorName(nextColor), IsCheck: isCheck, MoveNumber: moveNumber,
	})
	if opponentID != 0 {
		r.broadcast(opponentID, chessproto.OpponentMove{
			Type: "OPPONENT_MOVE", GameID: gameID, Move: move, FEN: fen,
			NextToMove: colorName(nextColor), IsCheck: isCheck, MoveNumber: moveNumber,
		})
	}

	if ended {
		r.EndGame(ctx, gameID, gi.Engine.Result(), "checkmate")
		return true, ""
	}

	if gi.HasAI && nextColor == gi.AIColor {
		r.driveAIMove(ctx, gi)
	}
	return true, ""
}

// driveAIMove plays exactly one move for the AI side of gi, if the game
// is still active and it is in fact the AI's turn. The human receives an
// OPPONENT_MOVE exactly as if a second human had moved.
func (r *Registry) driveAIMove(ctx context.Context, gi *GameInstance) {
	r.mu.Lock()
	if !gi.Active || gi.Engine.SideToMove() != gi.AIColor {
		r.mu.Unlock()
		return
	}
	move, ok := gi.AI.SelectMove(gi.Engine)
	if !ok || !gi.Engine.Move(move) {
		r.mu.Unlock()
		return
	}
	gi.MoveHistory = append(gi.MoveHistory, move)
	ended := gi.Engine.IsEnded()
	fen := gi.Engine.FEN()
	nextColor := gi.Engine.SideToMove()
	isCheck := gi.Engine.IsKingInCheck(nextColor)
	moveNumber := len(gi.MoveHistory)
	humanID := gi.idOf(gi.AIColor.Opponent())
	gameID := gi.ID
	r.mu.Unlock()

	r.finishedGames.AppendMove(ctx, gameID, move)
	r.broadcast(humanID, chessproto.OpponentMove{
		Type: "OPPONENT_MOVE", GameID: gameID, Move: move, FEN: fen,
		NextToMove: colorName(nextColor), IsCheck: isCheck, MoveNumber: moveNumber,
	})

	if ended {
		r.EndGame(ctx, gameID, gi.Engine.Result(), "checkmate")
	}
}

// ResignGame ends gameID in favor of playerID's opponent.
func (r *Registry) ResignGame(ctx context.Context, gameID, playerID int64) bool {
	r.mu.Lock()
	gi, ok := r.games[gameID]
	if !ok || !gi.Active {
		r.mu.Unlock()
		return false
	}
	color, inGame := gi.colorOf(playerID)
	r.mu.Unlock()
	if !inGame {
		return false
	}

	var result chessengine.Result
	if color == chessengine.White {
		result = chessengine.BlackWin
	} else {
		result = chessengine.WhiteWin
	}
	r.EndGame(ctx, gameID, result, "resignation")
	return true
}

// OfferDraw records a draw offer from playerID's side and notifies the
// opponent.
func (r *Registry) OfferDraw(gameID, playerID int64) bool {
	r.mu.Lock()
	gi, ok := r.games[gameID]
	if !ok || !gi.Active {
		r.mu.Unlock()
		return false
	}
	color, inGame := gi.colorOf(playerID)
	if !inGame {
		r.mu.Unlock()
		return false
	}
	if color == chessengine.White {
		gi.WhiteDrawOffered = true
	} else {
		gi.BlackDrawOffered = true
	}
	opponentID := gi.idOf(color.Opponent())
	r.mu.Unlock()

	r.broadcast(opponentID, chessproto.DrawOfferReceived{Type: "DRAW_OFFER_RECEIVED", GameID: gameID})
	return true
}

// RespondToDraw answers the *opponent's* outstanding offer (not the
// responder's own). Accepting ends the game as a draw; declining clears
// both flags and notifies the original offerer directly.
func (r *Registry) RespondToDraw(ctx context.Context, gameID, playerID int64, accepted bool) bool {
	r.mu.Lock()
	gi, ok := r.games[gameID]
	if !ok || !gi.Active {
		r.mu.Unlock()
		return false
	}
	color, inGame := gi.colorOf(playerID)
	if !inGame {
		r.mu.Unlock()
		return false
	}
	opponentColor := color.Opponent()
	opponentOffered := gi.WhiteDrawOffered
	if opponentColor == chessengine.Black {
		opponentOffered = gi.BlackDrawOffered
	}
	if !opponentOffered {
		r.mu.Unlock()
		return false
	}
	gi.WhiteDrawOffered = false
	gi.BlackDrawOffered = false
	offererID := gi.idOf(opponentColor)
	r.mu.Unlock()

	if accepted {
		r.EndGame(ctx, gameID, chessengine.Draw, "draw_agreement")
		return true
	}
	r.broadcast(offererID, chessproto.DrawDeclined{Type: "DRAW_DECLINED", GameID: gameID})
	return true
}

// GetGameState answers GET_GAME_STATE for any participant.
func (r *Registry) GetGameState(gameID int64) (chessproto.GameState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gi, ok := r.games[gameID]
	if !ok {
		return chessproto.GameState{}, false
	}
	toMove := gi.Engine.SideToMove()
	return chessproto.GameState{
		Type:             "GAME_STATE",
		GameID:           gi.ID,
		FEN:              gi.Engine.FEN(),
		WhiteUsername:    gi.WhiteUsername,
		BlackUsername:    gi.BlackUsername,
		ToMove:           colorName(toMove),
		IsCheck:          gi.Engine.IsKingInCheck(toMove),
		MoveHistory:      append([]string(nil), gi.MoveHistory...),
		WhiteDrawOffered: gi.WhiteDrawOffered,
		BlackDrawOffered: gi.BlackDrawOffered,
	}, true
}

// GetMoveHistory returns a copy of gameID's move log, or nil if unknown.
func (r *Registry) GetMoveHistory(gameID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	gi, ok := r.games[gameID]
	if !ok {
		return nil
	}
	return append([]string(nil), gi.MoveHistory...)
}

// HandlePlayerDisconnect ends any live game userID is in, awarding the
// win to the surviving opponent, and clears any pending challenge
// involving userID. Broadcasts GAME_ENDED only to the opponent — the
// disconnected side has no socket left to receive it.
func (r *Registry) HandlePlayerDisconnect(ctx context.Context, userID int64) {
	r.cancelChallengesInvolving(userID)

	r.mu.Lock()
	gameID, ok := r.gameByPlayer[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	gi := r.games[gameID]
	color, _ := gi.colorOf(userID)
	opponentID := gi.idOf(color.Opponent())
	r.mu.Unlock()

	var result chessengine.Result
	if color == chessengine.White {
		result = chessengine.BlackWin
	} else {
		result = chessengine.WhiteWin
	}
	r.endGameNotifyOnly(ctx, gameID, result, "opponent_disconnected", opponentID)
}

// RequestRematch sends toUserID a RematchOffered broadcast naming
// fromGameID and fromUserID. The registry keeps no rematch state and
// creates no challenge — it is a convenience notification only.
func (r *Registry) RequestRematch(fromGameID, fromUserID, toUserID int64) {
	r.broadcast(toUserID, chessproto.RematchOffered{
		Type: "REMATCH_OFFERED", FromGameID: fromGameID, FromUserID: fromUserID,
	})
}
