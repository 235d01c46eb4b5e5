package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/quietfen/chessd/pkg/chessproto"
)

// handlePing echoes the caller's timestamp back, or the server's own
// clock if the request omitted one. Never touches a session — the
// original answers PING unconditionally.
func (d *Dispatcher) handlePing(raw []byte) []byte {
	var req chessproto.PingRequest
	_ = json.Unmarshal(raw, &req)

	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return mustMarshal(chessproto.Pong{Type: "PONG", Timestamp: ts})
}

// handleChatMessage relays text to the sender's current opponent. A
// sender with no live game, or one playing the built-in adversary, has
// nobody to relay to.
func (d *Dispatcher) handleChatMessage(ctx context.Context, raw []byte) []byte {
	var req chessproto.ChatMessageRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.SessionID == "" || req.Text == "" {
		return d.errJSON("missing_field", "session_id and text are required")
	}
	callerID, callerUsername, ok := d.resolveSession(ctx, req.SessionID)
	if !ok {
		return d.errJSON("invalid_session", "Session not found or expired")
	}

	if !d.Matches.RelayChatMessage(callerID, callerUsername, req.Text) {
		return d.errJSON("not_in_game", "You are not a player in a live game")
	}
	return nil
}
