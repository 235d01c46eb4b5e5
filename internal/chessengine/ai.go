package chessengine

// AI is the alpha-beta adversary offered as an opponent alongside
// human-vs-human play. It unifies the two divergent AI shapes the source
// carried (a material-only minimax and a separate, deeper searcher) into
// a single contract: construct with a search depth, ask for a move given
// the game played so far.
type AI struct {
	depth int
}

const (
	minAIDepth     = 1
	maxAIDepth     = 4
	defaultAIDepth = 2
	mateScore      = 1_000_000
)

// NewAI returns an AI with depth clamped to [1,4], defaulting to 2 when
// given a value outside that range.
func NewAI(depth int) *AI {
	if depth < minAIDepth || depth > maxAIDepth {
		depth = defaultAIDepth
	}
	return &AI{depth: depth}
}

func (ai *AI) Depth() int { return ai.depth }

// SetDepth clamps and applies a new search depth.
func (ai *AI) SetDepth(depth int) {
	if depth < minAIDepth || depth > maxAIDepth {
		depth = defaultAIDepth
	}
	ai.depth = depth
}

// SelectMove runs alpha-beta search to ai's configured depth from g's
// current position and returns the best move token for the side to move.
// Returns "", false if the game has already ended or no legal move
// exists (the latter is reachable only in degenerate positions, since
// this rule set has no checkmate/stalemate restriction).
func (ai *AI) SelectMove(g *Game) (string, bool) {
	if g.IsEnded() {
		return "", false
	}
	aiColor := g.SideToMove()
	_, move := ai.alphabeta(g, ai.depth, -2*mateScore, 2*mateScore, aiColor, 0)
	if move == "" {
		return "", false
	}
	return move, true
}

func (ai *AI) alphabeta(g *Game, depth, alpha, beta int, aiColor Color, ply int) (int, string) {
	if g.IsEnded() {
		return terminalScore(g, aiColor, ply), ""
	}
	if depth == 0 {
		return evaluate(g, aiColor), ""
	}

	moves := g.LegalMovesForCurrentPlayer()
	if len(moves) == 0 {
		return evaluate(g, aiColor), ""
	}

	maximizing := g.SideToMove() == aiColor
	bestMove := moves[0]
	bestScore := -2 * mateScore
	if !maximizing {
		bestScore = 2 * mateScore
	}

	for _, mv := range moves {
		child := g.Clone()
		child.Move(mv)
		score, _ := ai.alphabeta(child, depth-1, alpha, beta, aiColor, ply+1)

		if maximizing {
			if score > bestScore {
				bestScore, bestMove = score, mv
			}
			if bestScore > alpha {
				alpha = bestScore
			}
		} else {
			if score < bestScore {
				bestScore, bestMove = score, mv
			}
			if bestScore < beta {
				beta = bestScore
			}
		}
		if alpha >= beta {
			break
		}
	}

	return bestScore, bestMove
}

func terminalScore(g *Game, aiColor Color, ply int) int {
	switch g.Result() {
	case Draw:
		return 0
	case WhiteWin:
		if aiColor == White {
			return mateScore - ply
		}
		return -(mateScore - ply)
	case BlackWin:
		if aiColor == Black {
			return mateScore - ply
		}
		return -(mateScore - ply)
	default:
		return 0
	}
}

func pieceValue(pt PieceType) int {
	switch pt {
	case Pawn:
		return 1
	case Knight, Bishop:
		return 3
	case Rook:
		return 5
	case Queen:
		return 9
	default:
		return 0
	}
}

// evaluate is a material-only heuristic: sum of aiColor's piece values
// minus the opponent's, from aiColor's perspective.
func evaluate(g *Game, aiColor Color) int {
	own, opp := 0, 0
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			p := g.b[rank][file]
			if p.empty() {
				continue
			}
			v := pieceValue(p.Type)
			if p.Color == aiColor {
				own += v
			} else {
				opp += v
			}
		}
	}
	return own - opp
}
