package chessengine

// Result is the terminal state of a game, or Ongoing.
type Result string

const (
	Ongoing  Result = "ONGOING"
	WhiteWin Result = "WHITE_WIN"
	BlackWin Result = "BLACK_WIN"
	Draw     Result = "DRAW"
)

// maxPly caps the game at a draw, mirroring the source's 200-ply limit.
const maxPly = 200

// Game is a mutable chess position plus enough history (castling rights,
// ply count) to validate and apply moves. The zero value is not usable;
// construct with NewGame.
type Game struct {
	b      board
	ply    int
	ended  bool
	result Result

	whiteKingMoved  bool
	whiteRookAMoved bool
	whiteRookHMoved bool
	blackKingMoved  bool
	blackRookAMoved bool
	blackRookHMoved bool
}

// NewGame returns a fresh standard starting position with white to move.
func NewGame() *Game {
	return &Game{b: newStartingBoard(), result: Ongoing}
}

// Clone returns an independent copy; move search explores positions via
// clones rather than undo/redo.
func (g *Game) Clone() *Game {
	cp := *g
	return &cp
}

// Turn returns the ply count: 0 before any move, even means white to move.
func (g *Game) Turn() int { return g.ply }

// IsWhiteToMove reports whether the side to move is white.
func (g *Game) IsWhiteToMove() bool { return g.ply%2 == 0 }

// SideToMove returns the color whose turn it currently is.
func (g *Game) SideToMove() Color {
	if g.IsWhiteToMove() {
		return White
	}
	return Black
}

func (g *Game) IsEnded() bool  { return g.ended }
func (g *Game) Result() Result { return g.result }

// CheckMove reports whether token is a legal move for the side to move,
// without mutating state.
func (g *Game) CheckMove(token string) bool {
	_, ok := g.validate(token)
	return ok
}

// Move applies token if legal: mutates the board, toggles side-to-move,
// increments the ply counter, updates castling rights, and sets terminal
// state if applicable. Returns false, mutating nothing, if token is
// illegal or the game has already ended.
func (g *Game) Move(token string) bool {
	pm, ok := g.validate(token)
	if !ok {
		return false
	}

	mover := g.SideToMove()
	piece := g.b.at(pm.From)

	if isCastleMove(piece, pm) {
		g.applyCastle(mover, pm)
	} else {
		g.applyRegularMove(mover, piece, pm)
	}

	g.ply++
	g.checkGameEnd()
	return true
}

func isCastleMove(piece Piece, pm parsedMove) bool {
	return piece.Type == King && pm.From.Rank == pm.To.Rank && abs(pm.To.File-pm.From.File) == 2
}

// validate is the shared legality check behind CheckMove and Move.
func (g *Game) validate(token string) (parsedMove, bool) {
	if g.ended {
		return parsedMove{}, false
	}
	pm, ok := parseMoveToken(token)
	if !ok {
		return parsedMove{}, false
	}

	mover := g.SideToMove()
	piece := g.b.at(pm.From)
	if piece.empty() || piece.Color != mover {
		return parsedMove{}, false
	}
	target := g.b.at(pm.To)
	if !target.empty() && target.Color == mover {
		return parsedMove{}, false
	}

	lastRank := 7
	if mover == Black {
		lastRank = 0
	}
	reachingLastRank := piece.Type == Pawn && pm.To.Rank == lastRank
	if reachingLastRank && !pm.hasPromotion {
		return parsedMove{}, false
	}
	if !reachingLastRank && pm.hasPromotion {
		return parsedMove{}, false
	}

	if isCastleMove(piece, pm) {
		home := 0
		if mover == Black {
			home = 7
		}
		if pm.From != (Square{File: 4, Rank: home}) {
			return parsedMove{}, false
		}
		kingside := pm.To.File > pm.From.File
		if !g.canCastle(mover, kingside) {
			return parsedMove{}, false
		}
		return pm, true
	}

	if !isValidPieceMove(g.b, pm.From, pm.To, piece) {
		return parsedMove{}, false
	}
	return pm, true
}

func (g *Game) canCastle(color Color, kingside bool) bool {
	rank := 0
	if color == Black {
		rank = 7
	}
	kingMoved, rookAMoved, rookHMoved := g.castlingFlags(color)
	if kingMoved {
		return false
	}

	opponent := color.Opponent()
	if kingside {
		if rookHMoved || g.b.at(Square{File: 7, Rank: rank}) != (Piece{Type: Rook, Color: color}) {
			return false
		}
		for _, f := range [2]int{5, 6} {
			if !g.b.at(Square{File: f, Rank: rank}).empty() {
				return false
			}
		}
		for _, f := range [3]int{4, 5, 6} {
			if isSquareUnderAttack(g.b, Square{File: f, Rank: rank}, opponent) {
				return false
			}
		}
		return true
	}

	if rookAMoved || g.b.at(Square{File: 0, Rank: rank}) != (Piece{Type: Rook, Color: color}) {
		return false
	}
	for _, f := range [3]int{1, 2, 3} {
		if !g.b.at(Square{File: f, Rank: rank}).empty() {
			return false
		}
	}
	for _, f := range [3]int{4, 3, 2} {
		if isSquareUnderAttack(g.b, Square{File: f, Rank: rank}, opponent) {
			return false
		}
	}
	return true
}

func (g *Game) castlingFlags(color Color) (kingMoved, rookAMoved, rookHMoved bool) {
	if color == White {
		return g.whiteKingMoved, g.whiteRookAMoved, g.whiteRookHMoved
	}
	return g.blackKingMoved, g.blackRookAMoved, g.blackRookHMoved
}

func (g *Game) applyRegularMove(mover Color, piece Piece, pm parsedMove) {
	target := g.b.at(pm.To)
	if target.Type == King {
		g.ended = true
		if mover == White {
			g.result = WhiteWin
		} else {
			g.result = BlackWin
		}
	}

	g.updateCastlingRights(mover, piece.Type, pm.From)

	newPiece := piece
	if pm.hasPromotion {
		newPiece = Piece{Type: pm.Promotion, Color: mover}
	}
	g.b.set(pm.To, newPiece)
	g.b.set(pm.From, Piece{})
}

func (g *Game) applyCastle(mover Color, pm parsedMove) {
	rank := pm.From.Rank
	kingside := pm.To.File > pm.From.File

	g.b.set(pm.From, Piece{})
	g.b.set(pm.To, Piece{Type: King, Color: mover})

	var rookFrom, rookTo Square
	if kingside {
		rookFrom = Square{File: 7, Rank: rank}
		rookTo = Square{File: 5, Rank: rank}
	} else {
		rookFrom = Square{File: 0, Rank: rank}
		rookTo = Square{File: 3, Rank: rank}
	}
	g.b.set(rookFrom, Piece{})
	g.b.set(rookTo, Piece{Type: Rook, Color: mover})

	g.markKingMoved(mover)
	if kingside {
		g.markRookHMoved(mover)
	} else {
		g.markRookAMoved(mover)
	}
}

func (g *Game) updateCastlingRights(mover Color, pieceType PieceType, from Square) {
	if pieceType == King {
		g.markKingMoved(mover)
		return
	}
	if pieceType != Rook {
		return
	}
	rank := 0
	if mover == Black {
		rank = 7
	}
	if from.Rank != rank {
		return
	}
	switch from.File {
	case 0:
		g.markRookAMoved(mover)
	case 7:
		g.markRookHMoved(mover)
	}
}

func (g *Game) markKingMoved(c Color) {
	if c == White {
		g.whiteKingMoved = true
	} else {
		g.blackKingMoved = true
	}
}

func (g *Game) markRookAMoved(c Color) {
	if c == White {
		g.whiteRookAMoved = true
	} else {
		g.blackRookAMoved = true
	}
}

func (g *Game) markRookHMoved(c Color) {
	if c == White {
		g.whiteRookHMoved = true
	} else {
		g.blackRookHMoved = true
	}
}

// checkGameEnd applies the 200-ply draw cap and the king-count terminal
// check. Capture-of-king is detected inline in applyRegularMove; this is a
// second, independent pass over the board, matching the source's
// belt-and-suspenders structure.
func (g *Game) checkGameEnd() {
	if g.ended {
		return
	}
	if g.ply >= maxPly {
		g.ended = true
		g.result = Draw
		return
	}
	if g.b.countKings(White) == 0 {
		g.ended = true
		g.result = BlackWin
		return
	}
	if g.b.countKings(Black) == 0 {
		g.ended = true
		g.result = WhiteWin
	}
}

// IsKingInCheck reports whether side's king currently sits on an attacked
// square. Note this is never consulted to restrict a non-castling move;
// see the package doc comment on why king-capture is reachable at all.
func (g *Game) IsKingInCheck(side Color) bool {
	kingSq, found := g.findKing(side)
	if !found {
		return false
	}
	return isSquareUnderAttack(g.b, kingSq, side.Opponent())
}

func (g *Game) findKing(side Color) (Square, bool) {
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			p := g.b[rank][file]
			if p.Type == King && p.Color == side {
				return Square{File: file, Rank: rank}, true
			}
		}
	}
	return Square{}, false
}

// LegalMovesForCurrentPlayer enumerates every legal move token for the
// side to move, expanding pawn-reaches-last-rank moves into one token per
// promotion piece. Used by the AI adversary's search.
func (g *Game) LegalMovesForCurrentPlayer() []string {
	mover := g.SideToMove()
	var moves []string

	for fromRank := 0; fromRank < 8; fromRank++ {
		for fromFile := 0; fromFile < 8; fromFile++ {
			from := Square{File: fromFile, Rank: fromRank}
			piece := g.b.at(from)
			if piece.empty() || piece.Color != mover {
				continue
			}
			for toRank := 0; toRank < 8; toRank++ {
				for toFile := 0; toFile < 8; toFile++ {
					to := Square{File: toFile, Rank: toRank}
					if from == to {
						continue
					}
					lastRank := 7
					if mover == Black {
						lastRank = 0
					}
					if piece.Type == Pawn && to.Rank == lastRank {
						for _, letter := range []byte{'q', 'r', 'b', 'n'} {
							token := from.String() + to.String() + string(letter)
							if g.CheckMove(token) {
								moves = append(moves, token)
							}
						}
						continue
					}
					token := from.String() + to.String()
					if g.CheckMove(token) {
						moves = append(moves, token)
					}
				}
			}
		}
	}
	return moves
}

// parsedMove is a validated-shape (not yet validated-legal) move token.
type parsedMove struct {
	From         Square
	To           Square
	Promotion    PieceType
	hasPromotion bool
}

func parseMoveToken(token string) (parsedMove, bool) {
	if len(token) != 4 && len(token) != 5 {
		return parsedMove{}, false
	}
	from, ok := parseSquare(token[0:2])
	if !ok {
		return parsedMove{}, false
	}
	to, ok := parseSquare(token[2:4])
	if !ok {
		return parsedMove{}, false
	}
	pm := parsedMove{From: from, To: to}
	if len(token) == 5 {
		pt, ok := pieceTypeFromPromotionLetter(token[4])
		if !ok {
			return parsedMove{}, false
		}
		pm.Promotion = pt
		pm.hasPromotion = true
	}
	return pm, true
}
