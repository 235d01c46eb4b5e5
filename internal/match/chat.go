package match

import "github.com/quietfen/chessd/pkg/chessproto"

// RelayChatMessage forwards text from fromID to the other participant of
// fromID's live game. Returns false if fromID is not currently in a game
// or is playing the built-in adversary, which has no socket to receive it.
func (r *Registry) RelayChatMessage(fromID int64, fromUsername, text string) bool {
	r.mu.Lock()
	gameID, ok := r.gameByPlayer[fromID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	gi := r.games[gameID]
	color, _ := gi.colorOf(fromID)
	opponentID := gi.idOf(color.Opponent())
	r.mu.Unlock()

	if opponentID == 0 {
		return false
	}

	r.broadcast(opponentID, chessproto.ChatMessage{
		Type: "CHAT_MESSAGE", GameID: gameID, FromID: fromID, FromName: fromUsername, Text: text,
	})
	return true
}
