package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/quietfen/chessd/pkg/chessproto"
)

// handleGetAvailablePlayers answers with a window of AvailablePlayersWindow
// users on either side of the caller's own rank in the rating-sorted
// roster, excluding the caller, filtered to users with a live session,
// and decorated with each candidate's current matchmaking status.
func (d *Dispatcher) handleGetAvailablePlayers(ctx context.Context, raw []byte) []byte {
	var req chessproto.GetAvailablePlayersRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" {
		return d.errJSON("missing_field", "session_id is required")
	}
	callerID, _, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	all := d.Users.AllOrderedByRatingDesc(ctx)
	callerIndex := -1
	for i, u := range all {
		if u.ID == callerID {
			callerIndex = i
			break
		}
	}

	lo, hi := 0, len(all)
	if callerIndex >= 0 {
		lo = callerIndex - AvailablePlayersWindow
		if lo < 0 {
			lo = 0
		}
		hi = callerIndex + AvailablePlayersWindow + 1
		if hi > len(all) {
			hi = len(all)
		}
	}

	players := make([]chessproto.PlayerSummary, 0, hi-lo)
	for _, u := range all[lo:hi] {
		if u.ID == callerID {
			continue
		}
		if !d.Sessions.IsOnline(u.ID) {
			continue
		}
		status := "available"
		switch {
		case d.Matches.IsPlayerInGame(u.ID):
			status = "in_game"
		case d.Matches.HasPendingChallenge(u.ID):
			status = "busy"
		}
		players = append(players, chessproto.PlayerSummary{
			UserID: u.ID, Username: u.Username, Rating: u.Rating, Status: status,
		})
	}

	return mustMarshal(chessproto.PlayerList{Type: "PLAYER_LIST", Players: players})
}
