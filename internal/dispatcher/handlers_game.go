package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/quietfen/chessd/pkg/chessproto"
)

// checkParticipant looks up gameID and confirms callerID is one of its
// two players, in that order, mirroring the original's GAME_NOT_FOUND
// before NOT_IN_GAME precedence.
func (d *Dispatcher) checkParticipant(gameID, callerID int64) (errCode string) {
	gi := d.Matches.GetGame(gameID)
	if gi == nil {
		return "game_not_found"
	}
	if gi.WhiteID != callerID && gi.BlackID != callerID {
		return "not_in_game"
	}
	return ""
}

func (d *Dispatcher) handleMove(ctx context.Context, raw []byte) []byte {
	var req chessproto.MoveRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.GameID == 0 || req.Move == "" {
		return d.errJSON("missing_field", "session_id, game_id, and move are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}
	if code := d.checkParticipant(req.GameID, callerID); code != "" {
		return d.errJSON(code, "")
	}

	accepted, _ := d.Matches.MakeMove(ctx, req.GameID, callerID, req.Move)
	if !accepted {
		return mustMarshal(chessproto.MoveRejected{
			Type: "MOVE_REJECTED", GameID: req.GameID, Move: req.Move, Reason: "Illegal move",
		})
	}
	// MakeMove already delivered MOVE_ACCEPTED to the mover through the
	// broadcast callback; no separate direct response is sent here.
	return nil
}

func (d *Dispatcher) handleResign(ctx context.Context, raw []byte) []byte {
	var req chessproto.ResignRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.GameID == 0 {
		return d.errJSON("missing_field", "session_id and game_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}
	if code := d.checkParticipant(req.GameID, callerID); code != "" {
		return d.errJSON(code, "")
	}

	if !d.Matches.ResignGame(ctx, req.GameID, callerID) {
		return d.errJSON("resign_failed", "")
	}
	return mustMarshal(chessproto.ResignResponse{
		Type: "RESIGN_RESPONSE", GameID: req.GameID, Status: "success", Message: "You resigned from the game",
	})
}

func (d *Dispatcher) handleDrawOffer(ctx context.Context, raw []byte) []byte {
	var req chessproto.DrawOfferRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.GameID == 0 {
		return d.errJSON("missing_field", "session_id and game_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}
	if code := d.checkParticipant(req.GameID, callerID); code != "" {
		return d.errJSON(code, "")
	}

	if !d.Matches.OfferDraw(req.GameID, callerID) {
		return d.errJSON("draw_offer_failed", "")
	}
	return mustMarshal(chessproto.DrawOfferResponse{
		Type: "DRAW_OFFER_RESPONSE", GameID: req.GameID, Status: "success", Message: "Draw offer sent to opponent",
	})
}

func (d *Dispatcher) handleDrawResponse(ctx context.Context, raw []byte) []byte {
	var req struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		GameID    int64  `json:"game_id"`
		Accepted  *bool  `json:"accepted"`
	}
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.GameID == 0 || req.Accepted == nil {
		return d.errJSON("missing_field", "session_id, game_id, and accepted are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}
	if code := d.checkParticipant(req.GameID, callerID); code != "" {
		return d.errJSON(code, "")
	}

	accepted := *req.Accepted
	if !d.Matches.RespondToDraw(ctx, req.GameID, callerID, accepted) {
		return d.errJSON("draw_response_failed", "")
	}

	message := "Draw declined - game continues"
	result := ""
	if accepted {
		message = "Draw accepted - game ended"
		result = "draw"
	}
	return mustMarshal(chessproto.DrawResponseResult{
		Type: "DRAW_RESPONSE_RESPONSE", GameID: req.GameID, Accepted: accepted,
		Result: result, Status: "success", Message: message,
	})
}

// handleRequestRematch looks up the finished game directly from the
// persistent store, since the match registry forgets a game once it has
// ended. The opponent's online status gates the offer exactly as the
// original gated it on a live Session lookup.
func (d *Dispatcher) handleRequestRematch(ctx context.Context, raw []byte) []byte {
	var req chessproto.RequestRematchRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.PreviousGameID == 0 {
		return d.errJSON("missing_field", "session_id and previous_game_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	g := d.Games.ByID(ctx, req.PreviousGameID)
	if g == nil {
		return d.errJSON("game_not_found", "Previous game not found")
	}
	if g.WhitePlayerID != callerID && g.BlackPlayerID != callerID {
		return d.errJSON("not_in_game", "You were not a player in that game")
	}

	opponentID := g.BlackPlayerID
	if g.WhitePlayerID != callerID {
		opponentID = g.WhitePlayerID
	}
	opponent := d.Users.ByID(ctx, opponentID)
	if opponent == nil || !d.Sessions.IsOnline(opponentID) {
		return d.errJSON("user_offline", "Opponent is offline")
	}

	d.Matches.RequestRematch(req.PreviousGameID, callerID, opponentID)

	return mustMarshal(chessproto.RematchRequestResponse{
		Type: "REMATCH_REQUEST_RESPONSE", Status: "success",
		Message: "Rematch request sent to " + opponent.Username,
	})
}
