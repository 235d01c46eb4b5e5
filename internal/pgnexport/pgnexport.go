// Package pgnexport turns a finished game's long-algebraic move log (the
// on-the-wire notation internal/chessengine speaks) into standard
// algebraic notation and a full PGN blob, for GET_GAME_HISTORY
// responses. It replays the move log through corentings/chess/v2 rather
// than through internal/chessengine itself: the in-house engine's
// non-standard king-capture-as-terminal-move rule has no PGN result
// code. The terminal king capture is kept in the stored move log, so a
// log that contains it (or any other move standard chess forbids) makes
// ToSAN stop at that move and report ok=false.
package pgnexport

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// ToSAN replays a long-algebraic move log and returns the equivalent SAN
// tokens. Returns ok=false, with the SAN of the moves before it, if any
// move fails to decode or play under standard chess rules (which should not happen for a log internal/chessengine
// itself produced, short of the king-capture edge case).
func ToSAN(uciMoves []string) (sanMoves []string, ok bool) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	algebraic := nchess.AlgebraicNotation{}

	san := make([]string, 0, len(uciMoves))
	for _, uci := range uciMoves {
		pos := game.Position()
		mv, err := notation.Decode(pos, strings.ToLower(strings.TrimSpace(uci)))
		if err != nil {
			return san, false
		}
		s := algebraic.Encode(pos, mv)
		if err := game.Move(mv, nil); err != nil {
			return san, false
		}
		san = append(san, s)
	}
	return san, true
}

// ResultTag maps our result vocabulary to the PGN seven-tag roster's
// Result field.
func ResultTag(result string) string {
	switch result {
	case "WHITE_WIN":
		return "1-0"
	case "BLACK_WIN":
		return "0-1"
	case "DRAW":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// Build assembles a full PGN document. sanMoves may be shorter than the
// original move log (see ToSAN); an unplayable tail is simply omitted
// rather than failing the whole export, since the game result and move
// count are still derived from the authoritative log.
func Build(whiteName, blackName string, sanMoves []string, result, reason string, when time.Time) string {
	if when.IsZero() {
		when = time.Now()
	}
	resultTag := ResultTag(result)

	var b strings.Builder
	b.WriteString("[Event \"Online Chess\"]\n")
	b.WriteString("[Site \"chessd\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", when.Year(), int(when.Month()), when.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitize(whiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitize(blackName)))
	if reason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitize(reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", resultTag))

	for i := 0; i < len(sanMoves); i += 2 {
		turn := i/2 + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(sanMoves[i])))
		if i+1 < len(sanMoves) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(sanMoves[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(resultTag)
	return b.String()
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
