package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietfen/chessd/internal/chessengine"
	"github.com/quietfen/chessd/internal/store"
	"github.com/quietfen/chessd/pkg/chessproto"
)

func TestRelayChatMessage_DeliversToOpponentOnly(t *testing.T) {
	users := newFakeUserStore()
	games := newFakeGameStore()
	r, rec := newTestRegistry(users, games)
	ctx := context.Background()

	id := r.CreateChallenge(1, "alice", 2, "bob", "white")
	gameID, ok := r.AcceptChallenge(ctx, id)
	require.True(t, ok)

	require.True(t, r.RelayChatMessage(1, "alice", "hello"))

	bobMsgs := rec.forUser(2)
	require.Len(t, bobMsgs, 3) // CHALLENGE_RECEIVED + MATCH_STARTED + CHAT_MESSAGE
	cm, ok := bobMsgs[len(bobMsgs)-1].(chessproto.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, gameID, cm.GameID)
	assert.Equal(t, int64(1), cm.FromID)
	assert.Equal(t, "alice", cm.FromName)
	assert.Equal(t, "hello", cm.Text)

	aliceMsgs := rec.forUser(1)
	for _, m := range aliceMsgs {
		_, isChat := m.(chessproto.ChatMessage)
		assert.False(t, isChat, "sender must not receive their own chat message back")
	}
}

func TestRelayChatMessage_FalseWhenNotInAGame(t *testing.T) {
	users := newFakeUserStore()
	games := newFakeGameStore()
	r, _ := newTestRegistry(users, games)

	assert.False(t, r.RelayChatMessage(99, "ghost", "hi"))
}

func TestRelayChatMessage_FalseAgainstAIOpponent(t *testing.T) {
	human := &store.User{ID: 1, Rating: 1000}
	users := newFakeUserStore(human)
	games := newFakeGameStore()
	r, _ := newTestRegistry(users, games)
	ctx := context.Background()

	_, ok := r.CreateAIGame(ctx, 1, "alice", chessengine.White, 1)
	require.True(t, ok)

	assert.False(t, r.RelayChatMessage(1, "alice", "hi"))
}
