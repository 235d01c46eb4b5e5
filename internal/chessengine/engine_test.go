package chessengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGame_StartingPosition(t *testing.T) {
	g := NewGame()
	assert.True(t, g.IsWhiteToMove())
	assert.False(t, g.IsEnded())
	assert.Equal(t, 0, g.Turn())
	assert.Equal(t,
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		g.FEN())
}

func TestMove_PawnTwoSquareFromStartRankOnly(t *testing.T) {
	g := NewGame()
	require.True(t, g.Move("e2e4"))
	require.False(t, NewGame().Move("e3e5")) // not from the start rank, on an unplayed game this is also empty-origin

	g2 := NewGame()
	require.True(t, g2.Move("e2e3"))
	assert.False(t, g2.Move("e3e5")) // no longer on its start rank
}

func TestMove_PawnCannotJumpOverOccupiedSquare(t *testing.T) {
	g := NewGame()
	require.True(t, g.Move("e2e4"))
	require.True(t, g.Move("d7d5"))
	// white pawn on e4 tries e4e6 - illegal distance anyway; verify the
	// two-square jump is blocked when an origin-adjacent square is occupied.
	g2 := NewGame()
	g2.b.set(Square{File: 4, Rank: 2}, Piece{Type: Knight, Color: White})
	assert.False(t, g2.Move("e2e4"))
}

func TestMove_PawnDiagonalCaptureOnly(t *testing.T) {
	g := NewGame()
	require.True(t, g.Move("e2e4"))
	require.True(t, g.Move("d7d5"))
	assert.True(t, g.CheckMove("e4d5"))  // diagonal onto an enemy pawn: capture
	assert.True(t, g.CheckMove("e4e5"))  // straight onto an empty square: also fine
	assert.False(t, g.CheckMove("e4f5")) // diagonal onto an empty square: illegal
}

func TestMove_PawnStraightCannotCapture(t *testing.T) {
	var b board
	b.set(Square{File: 4, Rank: 4}, Piece{Type: Pawn, Color: White})
	b.set(Square{File: 4, Rank: 5}, Piece{Type: Pawn, Color: Black})
	assert.False(t, isValidPawnMove(b, Square{File: 4, Rank: 4}, Square{File: 4, Rank: 5}, White))
}

func TestMove_KingCaptureEndsGameImmediately(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 4, Rank: 1}, Piece{Type: King, Color: Black})

	require.True(t, g.Move("e1e2"))
	assert.True(t, g.IsEnded())
	assert.Equal(t, WhiteWin, g.Result())
}

func TestMove_RejectsLeavingOwnOutOfCheckRestriction(t *testing.T) {
	// This rule set never blocks a move for leaving the mover's own king
	// in check outside of castling - confirm a pinned-looking move is
	// still accepted.
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 4, Rank: 7}, Piece{Type: Rook, Color: Black})
	g.b.set(Square{File: 4, Rank: 1}, Piece{Type: Pawn, Color: White})

	assert.True(t, g.CheckMove("e2e3")) // moves the blocking pawn, exposing the king to the rook; still legal
}

func TestCastle_KingsideRequiresClearPathAndUnattackedSquares(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 7, Rank: 0}, Piece{Type: Rook, Color: White})
	assert.True(t, g.CheckMove("e1g1"))

	g2 := g.Clone()
	g2.b.set(Square{File: 5, Rank: 0}, Piece{Type: Bishop, Color: White})
	assert.False(t, g2.CheckMove("e1g1")) // f1 occupied

	g3 := g.Clone()
	g3.b.set(Square{File: 6, Rank: 7}, Piece{Type: Rook, Color: Black}) // attacks g1
	assert.False(t, g3.CheckMove("e1g1"))
}

func TestCastle_UnavailableOnceKingHasMoved(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 7, Rank: 0}, Piece{Type: Rook, Color: White})
	g.b.set(Square{File: 4, Rank: 7}, Piece{Type: King, Color: Black})

	require.True(t, g.Move("e1f1"))
	require.True(t, g.Move("e8e7"))
	require.True(t, g.Move("f1e1"))
	require.True(t, g.Move("e7e8"))
	assert.False(t, g.CheckMove("e1g1"))
}

func TestCastle_AppliesRookAndKingTogether(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 0, Rank: 0}, Piece{Type: Rook, Color: White})

	require.True(t, g.Move("e1c1"))
	assert.Equal(t, Piece{Type: King, Color: White}, g.b.at(Square{File: 2, Rank: 0}))
	assert.Equal(t, Piece{Type: Rook, Color: White}, g.b.at(Square{File: 3, Rank: 0}))
	assert.True(t, g.b.at(Square{File: 4, Rank: 0}).empty())
	assert.True(t, g.b.at(Square{File: 0, Rank: 0}).empty())
}

func TestMove_PromotionRequiresLetterOnLastRank(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 0, Rank: 6}, Piece{Type: Pawn, Color: White})
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 4, Rank: 7}, Piece{Type: King, Color: Black})

	assert.False(t, g.CheckMove("a7a8")) // missing promotion letter
	assert.True(t, g.CheckMove("a7a8q"))

	require.True(t, g.Move("a7a8q"))
	assert.Equal(t, Piece{Type: Queen, Color: White}, g.b.at(Square{File: 0, Rank: 7}))
}

func TestMove_PromotionLetterRejectedOffLastRank(t *testing.T) {
	g := NewGame()
	assert.False(t, g.CheckMove("e2e4q"))
}

func TestGame_TwoHundredPlyCapEndsInDraw(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 0, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 7, Rank: 7}, Piece{Type: King, Color: Black})

	cycle := []string{"a1a2", "h8h7", "a2a1", "h7h8"}
	for i := 0; i < maxPly; i++ {
		tok := cycle[i%len(cycle)]
		require.True(t, g.Move(tok), "move %d (%s) should be legal", i, tok)
	}
	assert.True(t, g.IsEnded())
	assert.Equal(t, Draw, g.Result())
}

func TestLegalMovesForCurrentPlayer_StartingPositionCount(t *testing.T) {
	g := NewGame()
	moves := g.LegalMovesForCurrentPlayer()
	assert.Equal(t, 20, len(moves)) // 16 pawn moves + 4 knight moves
}

func TestIsKingInCheck(t *testing.T) {
	g := NewGame()
	g.b = board{}
	g.b.set(Square{File: 4, Rank: 0}, Piece{Type: King, Color: White})
	g.b.set(Square{File: 4, Rank: 7}, Piece{Type: Rook, Color: Black})
	assert.True(t, g.IsKingInCheck(White))
	assert.False(t, g.IsKingInCheck(Black))
}
