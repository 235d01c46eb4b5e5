package match

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/quietfen/chessd/internal/chessengine"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// coinFlip resolves a "random" preferred color, drawing a single bit
// from crypto/rand rather than a seeded PRNG.
func coinFlip() chessengine.Color {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil || n.Int64() == 0 {
		return chessengine.White
	}
	return chessengine.Black
}

// GetChallenge returns a copy of the pending challenge named by id, or
// false if none exists. Lets the dispatcher validate ownership
// (challenger vs target) before calling Accept/Decline/Cancel.
func (r *Registry) GetChallenge(id string) (Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.challengesByID[id]
	if !ok {
		return Challenge{}, false
	}
	return *ch, true
}

// HasPendingChallenge reports whether userID currently holds a pending
// challenge, as either challenger or target.
func (r *Registry) HasPendingChallenge(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, asChallenger := r.challengesByChallenger[userID]
	_, asTarget := r.challengesByTarget[userID]
	return asChallenger || asTarget
}

// IsPlayerInGame reports whether userID is a participant of a live game.
func (r *Registry) IsPlayerInGame(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.gameByPlayer[userID]
	return ok
}

// CreateChallenge records a new pending challenge and notifies the
// target. Preconditions (neither party already in a game or holding a
// pending challenge) are the dispatcher's responsibility, per §4.4.
func (r *Registry) CreateChallenge(challengerID int64, challengerUsername string, targetID int64, targetUsername, preferredColor string) string {
	id := generateChallengeID()
	ch := &Challenge{
		ID:                 id,
		ChallengerID:       challengerID,
		ChallengerUsername: challengerUsername,
		TargetID:           targetID,
		TargetUsername:     targetUsername,
		PreferredColor:     preferredColor,
		CreatedAt:          now(),
	}

	r.mu.Lock()
	r.challengesByID[id] = ch
	r.challengesByChallenger[challengerID] = id
	r.challengesByTarget[targetID] = id
	r.mu.Unlock()

	r.broadcast(targetID, chessproto.ChallengeReceived{
		Type:               "CHALLENGE_RECEIVED",
		ChallengeID:        id,
		ChallengerID:       challengerID,
		ChallengerUsername: challengerUsername,
		PreferredColor:     preferredColor,
		Timestamp:          ch.CreatedAt.UTC().Format(timeLayout),
	})
	return id
}

// AcceptChallenge resolves colors, creates the game, removes the
// challenge, and notifies both players. Returns 0, false if id names no
// pending challenge.
func (r *Registry) AcceptChallenge(ctx context.Context, id string) (int64, bool) {
	r.mu.Lock()
	ch, ok := r.challengesByID[id]
	if !ok {
		r.mu.Unlock()
		return 0, false
	}
	r.mu.Unlock()

	whiteID, whiteUsername, blackID, blackUsername := resolveColors(ch)
	gameID, ok := r.createGame(ctx, whiteID, whiteUsername, blackID, blackUsername)
	if !ok {
		return 0, false
	}

	r.mu.Lock()
	r.cleanupChallengeLocked(id)
	r.mu.Unlock()

	r.sendAll([]pendingSend{
		{whiteID, chessproto.MatchStarted{
			Type: "MATCH_STARTED", GameID: gameID, YourColor: "white",
			OpponentID: blackID, OpponentUsername: blackUsername,
		}},
		{blackID, chessproto.MatchStarted{
			Type: "MATCH_STARTED", GameID: gameID, YourColor: "black",
			OpponentID: whiteID, OpponentUsername: whiteUsername,
		}},
	})
	return gameID, true
}

func resolveColors(ch *Challenge) (whiteID int64, whiteUsername string, blackID int64, blackUsername string) {
	preferred := ch.PreferredColor
	if preferred == "random" || preferred == "" {
		if coinFlip() == chessengine.White {
			preferred = "white"
		} else {
			preferred = "black"
		}
	}
	if preferred == "black" {
		return ch.TargetID, ch.TargetUsername, ch.ChallengerID, ch.ChallengerUsername
	}
	return ch.ChallengerID, ch.ChallengerUsername, ch.TargetID, ch.TargetUsername
}

// DeclineChallenge notifies the challenger and removes the challenge.
func (r *Registry) DeclineChallenge(id string) bool {
	r.mu.Lock()
	ch, ok := r.challengesByID[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.cleanupChallengeLocked(id)
	r.mu.Unlock()

	r.broadcast(ch.ChallengerID, chessproto.ChallengeDeclined{
		Type: "CHALLENGE_DECLINED", ChallengeID: id, Reason: "declined",
	})
	return true
}

// CancelChallenge notifies the target and removes the challenge.
func (r *Registry) CancelChallenge(id string) bool {
	r.mu.Lock()
	ch, ok := r.challengesByID[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.cleanupChallengeLocked(id)
	r.mu.Unlock()

	r.broadcast(ch.TargetID, chessproto.ChallengeCancelled{
		Type: "CHALLENGE_CANCELLED", ChallengeID: id, Reason: "user_cancelled",
	})
	return true
}

// cleanupChallengeLocked removes id from all three challenge maps.
// Caller must hold r.mu.
func (r *Registry) cleanupChallengeLocked(id string) {
	ch, ok := r.challengesByID[id]
	if !ok {
		return
	}
	delete(r.challengesByID, id)
	delete(r.challengesByChallenger, ch.ChallengerID)
	delete(r.challengesByTarget, ch.TargetID)
}

// cancelChallengesInvolving removes any pending challenge naming userID
// as either party, without notification — used on disconnect.
func (r *Registry) cancelChallengesInvolving(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.challengesByChallenger[userID]; ok {
		r.cleanupChallengeLocked(id)
	}
	if id, ok := r.challengesByTarget[userID]; ok {
		r.cleanupChallengeLocked(id)
	}
}
