package chessengine

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// isPathClear reports whether every square strictly between from and to is
// empty, for a move along a straight line or diagonal. Callers are
// expected to have already confirmed the line/diagonal geometry.
func isPathClear(b board, from, to Square) bool {
	dFile := sign(to.File - from.File)
	dRank := sign(to.Rank - from.Rank)

	f, r := from.File+dFile, from.Rank+dRank
	for f != to.File || r != to.Rank {
		if !b[r][f].empty() {
			return false
		}
		f += dFile
		r += dRank
	}
	return true
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// isValidPieceMove validates the geometry of a move for the piece on
// `from`: destination reachability, path-clear for sliders, pawn's
// two-square-from-start-rank and diagonal-capture-only rules. It does not
// check whose turn it is, capture-own-piece, or castling (handled by the
// caller); king one-square moves are validated here, king two-square
// castling moves are not.
func isValidPieceMove(b board, from, to Square, piece Piece) bool {
	dFile := to.File - from.File
	dRank := to.Rank - from.Rank

	switch piece.Type {
	case Pawn:
		return isValidPawnMove(b, from, to, piece.Color)

	case Knight:
		return (abs(dFile) == 1 && abs(dRank) == 2) || (abs(dFile) == 2 && abs(dRank) == 1)

	case Bishop:
		if abs(dFile) != abs(dRank) || dFile == 0 {
			return false
		}
		return isPathClear(b, from, to)

	case Rook:
		if dFile != 0 && dRank != 0 {
			return false
		}
		return isPathClear(b, from, to)

	case Queen:
		if dFile == 0 || dRank == 0 {
			return isPathClear(b, from, to)
		}
		if abs(dFile) == abs(dRank) {
			return isPathClear(b, from, to)
		}
		return false

	case King:
		return abs(dFile) <= 1 && abs(dRank) <= 1 && (dFile != 0 || dRank != 0)

	default:
		return false
	}
}

func isValidPawnMove(b board, from, to Square, color Color) bool {
	dir := 1
	startRank := 1
	if color == Black {
		dir = -1
		startRank = 6
	}
	dFile := to.File - from.File
	dRank := to.Rank - from.Rank

	// Straight advance.
	if dFile == 0 {
		if dRank == dir {
			return b.at(to).empty()
		}
		if dRank == 2*dir && from.Rank == startRank {
			mid := Square{File: from.File, Rank: from.Rank + dir}
			return b.at(mid).empty() && b.at(to).empty()
		}
		return false
	}

	// Diagonal capture only.
	if abs(dFile) == 1 && dRank == dir {
		target := b.at(to)
		return !target.empty() && target.Color != color
	}

	return false
}

// isSquareUnderAttack scans every piece of the attacking color to see if
// any can legally reach sq, per standard piece-attack geometry (pawns
// attack diagonally, not forward). Used for castling safety checks and by
// IsKingInCheck; ordinary moves are never rejected for leaving the mover's own king in
// check — see the package doc comment.
func isSquareUnderAttack(b board, sq Square, byColor Color) bool {
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			p := b[rank][file]
			if p.empty() || p.Color != byColor {
				continue
			}
			from := Square{File: file, Rank: rank}
			if pieceAttacks(b, from, sq, p) {
				return true
			}
		}
	}
	return false
}

func pieceAttacks(b board, from, to Square, piece Piece) bool {
	if piece.Type == Pawn {
		dir := 1
		if piece.Color == Black {
			dir = -1
		}
		return abs(to.File-from.File) == 1 && to.Rank-from.Rank == dir
	}
	if piece.Type == King {
		dFile := to.File - from.File
		dRank := to.Rank - from.Rank
		return abs(dFile) <= 1 && abs(dRank) <= 1 && (dFile != 0 || dRank != 0)
	}
	return isValidPieceMove(b, from, to, piece)
}
