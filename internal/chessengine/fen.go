package chessengine

import (
	"strconv"
	"strings"
)

// FEN renders the current position as a standard six-field FEN string.
// The en passant field is always "-" (en passant capture is not part of
// this rule set) and the halfmove clock is always "0" (fifty-move
// tracking is superseded by the 200-ply hard cap).
func (g *Game) FEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empties := 0
		for file := 0; file < 8; file++ {
			p := g.b[rank][file]
			if p.empty() {
				empties++
				continue
			}
			if empties > 0 {
				sb.WriteString(strconv.Itoa(empties))
				empties = 0
			}
			letter := p.Type.letter()
			if p.Color == White {
				letter = letter - 'a' + 'A'
			}
			sb.WriteByte(letter)
		}
		if empties > 0 {
			sb.WriteString(strconv.Itoa(empties))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if g.IsWhiteToMove() {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(g.castlingRightsFEN())

	sb.WriteString(" - 0 ")
	sb.WriteString(strconv.Itoa(g.ply/2 + 1))

	return sb.String()
}

func (g *Game) castlingRightsFEN() string {
	var sb strings.Builder
	if !g.whiteKingMoved && !g.whiteRookHMoved {
		sb.WriteByte('K')
	}
	if !g.whiteKingMoved && !g.whiteRookAMoved {
		sb.WriteByte('Q')
	}
	if !g.blackKingMoved && !g.blackRookHMoved {
		sb.WriteByte('k')
	}
	if !g.blackKingMoved && !g.blackRookAMoved {
		sb.WriteByte('q')
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}
