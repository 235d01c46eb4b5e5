// Package match is the process-wide registry of pending challenges and
// live games: two collections guarded by a single mutex, mirroring the
// original server's MatchManager and its one static pthread_mutex_t
// covering both. The registry never touches a socket directly — it
// delivers every unsolicited notification through an injected
// BroadcastFunc, which the composition root wires to the session
// registry plus frame codec. This keeps the registry testable with a
// recording stand-in instead of a live network.
package match

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/chessengine"
	"github.com/quietfen/chessd/internal/obslog"
	"github.com/quietfen/chessd/internal/store"
)

// BroadcastFunc delivers an unsolicited JSON-able message to a user id.
// The registry calls it only after releasing its mutex.
type BroadcastFunc func(userID int64, message any)

// Challenge is a pending challenge between two users. Runtime-only.
type Challenge struct {
	ID                 string
	ChallengerID       int64
	ChallengerUsername string
	TargetID           int64
	TargetUsername     string
	PreferredColor     string
	CreatedAt          time.Time
}

// GameInstance is a live game. Runtime-only; released once the game ends.
type GameInstance struct {
	ID               int64
	WhiteID          int64
	WhiteUsername    string
	BlackID          int64
	BlackUsername    string
	Engine           *chessengine.Game
	MoveHistory      []string
	StartTime        time.Time
	Active           bool
	WhiteDrawOffered bool
	BlackDrawOffered bool

	// AI is non-nil when one side of the game is the built-in adversary
	// rather than a second human connection.
	AI      *chessengine.AI
	AIColor chessengine.Color
	HasAI   bool
}

func (gi *GameInstance) colorOf(userID int64) (chessengine.Color, bool) {
	switch userID {
	case gi.WhiteID:
		return chessengine.White, true
	case gi.BlackID:
		return chessengine.Black, true
	default:
		return chessengine.White, false
	}
}

func (gi *GameInstance) usernameOf(color chessengine.Color) string {
	if color == chessengine.White {
		return gi.WhiteUsername
	}
	return gi.BlackUsername
}

func (gi *GameInstance) idOf(color chessengine.Color) int64 {
	if color == chessengine.White {
		return gi.WhiteID
	}
	return gi.BlackID
}

// userStore is the subset of *store.UserStore the registry depends on.
type userStore interface {
	ByID(ctx context.Context, id int64) *store.User
	IncrementWins(ctx context.Context, id int64)
	IncrementLosses(ctx context.Context, id int64)
	IncrementDraws(ctx context.Context, id int64)
	UpdateRating(ctx context.Context, id int64, rating int)
}

// gameStore is the subset of *store.GameStore the registry depends on.
type gameStore interface {
	Create(ctx context.Context, whiteID, blackID int64) int64
	AppendMove(ctx context.Context, gameID int64, move string) bool
	End(ctx context.Context, gameID int64, result, moveLogJSON string) bool
}

// ratingDelta is applied to the winner (+) and loser (-) of a decisive
// game; draws leave ratings unchanged.
const ratingDelta = 3

// Registry is the process-wide singleton. Construct with New and share
// one instance across every connection worker.
type Registry struct {
	mu sync.Mutex

	challengesByID         map[string]*Challenge
	challengesByChallenger map[int64]string
	challengesByTarget     map[int64]string

	games        map[int64]*GameInstance
	gameByPlayer map[int64]int64

	users         userStore
	finishedGames gameStore
	broadcast     BroadcastFunc
}

func New(users userStore, finishedGames gameStore, broadcast BroadcastFunc) *Registry {
	return &Registry{
		challengesByID:         make(map[string]*Challenge),
		challengesByChallenger: make(map[int64]string),
		challengesByTarget:     make(map[int64]string),
		games:                  make(map[int64]*GameInstance),
		gameByPlayer:           make(map[int64]int64),
		users:                  users,
		finishedGames:          finishedGames,
		broadcast:              broadcast,
	}
}

func generateChallengeID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic("match: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func (r *Registry) sendAll(pending []pendingSend) {
	for _, p := range pending {
		r.broadcast(p.userID, p.message)
	}
}

type pendingSend struct {
	userID  int64
	message any
}

// GetActiveGameCount and GetPendingChallengeCount are introspection
// helpers, grounded on the original's get_active_game_count and
// get_pending_challenge_count, useful for /healthz and admin tooling.
func (r *Registry) GetActiveGameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}

func (r *Registry) GetPendingChallengeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.challengesByID)
}

func (r *Registry) logWarn(op string, fields ...zap.Field) {
	obslog.L().Warn("match: "+op, fields...)
}
