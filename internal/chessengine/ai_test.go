package chessengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAI_ClampsDepth(t *testing.T) {
	assert.Equal(t, defaultAIDepth, NewAI(0).Depth())
	assert.Equal(t, defaultAIDepth, NewAI(99).Depth())
	assert.Equal(t, 3, NewAI(3).Depth())
}

func TestAI_SelectMove_TakesFreeKingCaptureImmediately(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 4, Rank: 1}, Piece{Type: King, Color: Black})

	ai := NewAI(2)
	move, ok := ai.SelectMove(g)
	require.True(t, ok)
	assert.Equal(t, "e1e2", move)
}

func TestAI_SelectMove_PrefersMaterialGain(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 0, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 7, Rank: 7}, Piece{Type: King, Color: Black})
	g.b.set(Square{File: 3, Rank: 3}, Piece{Type: Rook, Color: White})
	g.b.set(Square{File: 3, Rank: 4}, Piece{Type: Pawn, Color: Black})
	g.b.set(Square{File: 5, Rank: 5}, Piece{Type: Pawn, Color: Black})

	ai := NewAI(1)
	move, ok := ai.SelectMove(g)
	require.True(t, ok)
	assert.Equal(t, "d4d5", move) // captures the undefended black pawn
}

func TestAI_SelectMove_ReturnsFalseOnEndedGame(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	require.True(t, g.Move("e1e2")) // no black king: countKings(Black)==0 ends the game

	ai := NewAI(2)
	_, ok := ai.SelectMove(g)
	assert.False(t, ok)
}

func TestEvaluate_ZeroInSymmetricPosition(t *testing.T) {
	g := NewGame()
	assert.Equal(t, 0, evaluate(g, White))
	assert.Equal(t, 0, evaluate(g, Black))
}
