package dispatcher

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"

	"github.com/quietfen/chessd/internal/chessengine"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// coinFlip resolves a "random" preferred color for AI_CHALLENGE, the
// same way the match registry resolves it for a two-human challenge.
func coinFlip() chessengine.Color {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil || n.Int64() == 0 {
		return chessengine.White
	}
	return chessengine.Black
}

func (d *Dispatcher) handleChallenge(ctx context.Context, raw []byte) []byte {
	var req chessproto.ChallengeRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.TargetUsername == "" {
		return d.errJSON("missing_field", "session_id and target_username are required")
	}
	callerID, callerUsername, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	if d.Matches.IsPlayerInGame(callerID) {
		return d.errJSON("already_in_game", "")
	}
	if d.Matches.HasPendingChallenge(callerID) {
		return d.errJSON("pending_challenge", "")
	}

	preferredColor := req.PreferredColor
	if preferredColor == "" {
		preferredColor = "random"
	}

	target := d.Users.ByUsername(ctx, req.TargetUsername)
	if target == nil {
		return d.errJSON("user_not_found", "Target user not found")
	}
	if target.ID == callerID {
		return d.errJSON("self_challenge", "")
	}
	if !d.Sessions.IsOnline(target.ID) {
		return d.errJSON("user_offline", "Target user is offline")
	}
	if d.Matches.IsPlayerInGame(target.ID) {
		return d.errJSON("user_busy", "Target user is already in a game")
	}
	if d.Matches.HasPendingChallenge(target.ID) {
		return d.errJSON("user_busy", "Target user has a pending challenge")
	}

	challengeID := d.Matches.CreateChallenge(callerID, callerUsername, target.ID, target.Username, preferredColor)

	return mustMarshal(chessproto.ChallengeSent{
		Type: "CHALLENGE_SENT", ChallengeID: challengeID, TargetUsername: target.Username, Status: "pending",
	})
}

func (d *Dispatcher) handleAIChallenge(ctx context.Context, raw []byte) []byte {
	var req chessproto.AIChallengeRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" {
		return d.errJSON("missing_field", "session_id is required")
	}
	callerID, callerUsername, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}
	if d.Matches.IsPlayerInGame(callerID) {
		return d.errJSON("already_in_game", "")
	}

	humanColor := chessengine.White
	if req.PreferredColor == "black" {
		humanColor = chessengine.Black
	} else if req.PreferredColor == "random" || req.PreferredColor == "" {
		humanColor = coinFlip()
	}

	depth := d.DefaultAIDepth
	if req.Depth > 0 {
		depth = req.Depth
	}

	gameID, ok := d.Matches.CreateAIGame(ctx, callerID, callerUsername, humanColor, depth)
	if !ok {
		return d.errJSON("ai_challenge_failed", "")
	}

	return mustMarshal(chessproto.AIChallengeSent{Type: "AI_CHALLENGE_SENT", GameID: gameID, Status: "accepted"})
}

func (d *Dispatcher) handleAcceptChallenge(ctx context.Context, raw []byte) []byte {
	var req chessproto.AcceptChallengeRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.ChallengeID == "" {
		return d.errJSON("missing_field", "session_id and challenge_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	ch, ok := d.Matches.GetChallenge(req.ChallengeID)
	if !ok {
		return d.errJSON("challenge_not_found", "")
	}
	if ch.TargetID != callerID {
		return d.errJSON("invalid_challenge", "This challenge is not for you")
	}

	gameID, ok := d.Matches.AcceptChallenge(ctx, req.ChallengeID)
	if !ok {
		return d.errJSON("challenge_accept_failed", "")
	}

	return mustMarshal(chessproto.ChallengeAccepted{
		Type: "CHALLENGE_ACCEPTED", ChallengeID: req.ChallengeID, GameID: gameID, Status: "success",
	})
}

func (d *Dispatcher) handleDeclineChallenge(ctx context.Context, raw []byte) []byte {
	var req chessproto.DeclineChallengeRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.ChallengeID == "" {
		return d.errJSON("missing_field", "session_id and challenge_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	ch, ok := d.Matches.GetChallenge(req.ChallengeID)
	if !ok {
		return d.errJSON("challenge_not_found", "")
	}
	if ch.TargetID != callerID {
		return d.errJSON("invalid_challenge", "This challenge is not for you")
	}
	if !d.Matches.DeclineChallenge(req.ChallengeID) {
		return d.errJSON("challenge_decline_failed", "")
	}

	return mustMarshal(chessproto.ChallengeDeclineAck{
		Type: "CHALLENGE_DECLINED_RESPONSE", ChallengeID: req.ChallengeID, Status: "success",
	})
}

func (d *Dispatcher) handleCancelChallenge(ctx context.Context, raw []byte) []byte {
	var req chessproto.CancelChallengeRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.ChallengeID == "" {
		return d.errJSON("missing_field", "session_id and challenge_id are required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	ch, ok := d.Matches.GetChallenge(req.ChallengeID)
	if !ok {
		return d.errJSON("challenge_not_found", "")
	}
	if ch.ChallengerID != callerID {
		return d.errJSON("invalid_challenge", "You did not send this challenge")
	}
	if !d.Matches.CancelChallenge(req.ChallengeID) {
		return d.errJSON("challenge_cancel_failed", "")
	}

	return mustMarshal(chessproto.ChallengeCancelAck{
		Type: "CHALLENGE_CANCELLED_RESPONSE", ChallengeID: req.ChallengeID, Status: "success",
	})
}
