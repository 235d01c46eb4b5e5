// Package chessproto defines the JSON-wire shapes of every application
// message the core emits or accepts, per the dispatcher's request tags
// and the registries' broadcasts. Every message embeds Type so a decoder
// can switch on the field before unmarshalling the rest.
package chessproto

import "time"

// Error is the shape of every ERROR response, regardless of which
// handler produced it.
type Error struct {
	Type      string `json:"type"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
}

func NewError(code, message, severity string) Error {
	return Error{
		Type:      "ERROR",
		ErrorCode: code,
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ChallengeReceived is broadcast to the target of a new challenge.
type ChallengeReceived struct {
	Type                string `json:"type"`
	ChallengeID         string `json:"challenge_id"`
	ChallengerID        int64  `json:"challenger_id"`
	ChallengerUsername  string `json:"challenger_username"`
	PreferredColor      string `json:"preferred_color"`
	Timestamp           string `json:"timestamp"`
}

// ChallengeSent is the direct response to the challenger.
type ChallengeSent struct {
	Type           string `json:"type"`
	ChallengeID    string `json:"challenge_id"`
	TargetUsername string `json:"target_username"`
	Status         string `json:"status"`
}

// AIChallengeSent is the direct response to a human who just opened a
// game against the built-in adversary.
type AIChallengeSent struct {
	Type   string `json:"type"`
	GameID int64  `json:"game_id"`
	Status string `json:"status"`
}

// ChallengeAccepted is the direct response to the acceptor.
type ChallengeAccepted struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challenge_id"`
	GameID      int64  `json:"game_id"`
	Status      string `json:"status"`
}

// ChallengeDeclineAck is the direct response to the decliner, distinct
// from the ChallengeDeclined broadcast sent to the original challenger.
type ChallengeDeclineAck struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challenge_id"`
	Status      string `json:"status"`
}

// ChallengeCancelAck is the direct response to the canceller, distinct
// from the ChallengeCancelled broadcast sent to the original target.
type ChallengeCancelAck struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challenge_id"`
	Status      string `json:"status"`
}

// ChallengeDeclined is broadcast to the challenger on decline.
type ChallengeDeclined struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challenge_id"`
	Reason      string `json:"reason"`
}

// ChallengeCancelled is broadcast to the target on cancel.
type ChallengeCancelled struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challenge_id"`
	Reason      string `json:"reason"`
}

// MatchStarted is broadcast to both players on accept, once each, with
// each recipient's own perspective baked in.
type MatchStarted struct {
	Type             string `json:"type"`
	GameID           int64  `json:"game_id"`
	YourColor        string `json:"your_color"`
	OpponentID       int64  `json:"opponent_id"`
	OpponentUsername string `json:"opponent_username"`
}

// MoveAccepted is the direct response to the player who just moved.
type MoveAccepted struct {
	Type       string `json:"type"`
	GameID     int64  `json:"game_id"`
	Move       string `json:"move"`
	FEN        string `json:"fen"`
	NextToMove string `json:"next_to_move"`
	IsCheck    bool   `json:"is_check"`
	MoveNumber int    `json:"move_number"`
}

// OpponentMove is broadcast to the player who did not move, including
// when the mover was an internally-driven AI adversary.
type OpponentMove struct {
	Type       string `json:"type"`
	GameID     int64  `json:"game_id"`
	Move       string `json:"move"`
	FEN        string `json:"fen"`
	NextToMove string `json:"next_to_move"`
	IsCheck    bool   `json:"is_check"`
	MoveNumber int    `json:"move_number"`
}

// MoveRejected is the direct response when a MOVE request is illegal.
type MoveRejected struct {
	Type   string `json:"type"`
	GameID int64  `json:"game_id"`
	Move   string `json:"move"`
	Reason string `json:"reason"`
}

// DrawOfferReceived is broadcast to the opponent of the offering side.
type DrawOfferReceived struct {
	Type   string `json:"type"`
	GameID int64  `json:"game_id"`
}

// DrawDeclined notifies the original offerer that their draw offer was
// turned down.
type DrawDeclined struct {
	Type   string `json:"type"`
	GameID int64  `json:"game_id"`
}

// GameEnded is broadcast to each human player, white first then black, as
// the last message either will receive about that game. When a player
// disconnects, only the surviving opponent receives it.
type GameEnded struct {
	Type            string   `json:"type"`
	GameID          int64    `json:"game_id"`
	Result          string   `json:"result"`
	Reason          string   `json:"reason"`
	WinnerUsername  string   `json:"winner_username,omitempty"`
	LoserUsername   string   `json:"loser_username,omitempty"`
	WhitePlayer     string   `json:"white_player"`
	BlackPlayer     string   `json:"black_player"`
	MoveCount       int      `json:"move_count"`
	DurationSeconds int64    `json:"duration_seconds"`
	MoveHistory     []string `json:"move_history"`
}

// GameState answers GET_GAME_STATE.
type GameState struct {
	Type             string   `json:"type"`
	GameID           int64    `json:"game_id"`
	FEN              string   `json:"fen"`
	WhiteUsername    string   `json:"white_username"`
	BlackUsername    string   `json:"black_username"`
	ToMove           string   `json:"to_move"`
	IsCheck          bool     `json:"is_check"`
	MoveHistory      []string `json:"move_history"`
	WhiteDrawOffered bool     `json:"white_draw_offered"`
	BlackDrawOffered bool     `json:"black_draw_offered"`
}

// PlayerSummary is one row of a PLAYER_LIST response.
type PlayerSummary struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Status   string `json:"status"`
}

type PlayerList struct {
	Type    string          `json:"type"`
	Players []PlayerSummary `json:"players"`
}

type LoginResponse struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Wins      int    `json:"wins,omitempty"`
	Losses    int    `json:"losses,omitempty"`
	Draws     int    `json:"draws,omitempty"`
	Rating    int    `json:"rating,omitempty"`
	Message   string `json:"message"`
}

type RegisterResponse struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	UserID   int64  `json:"user_id,omitempty"`
	Message  string `json:"message"`
}

type LogoutResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SessionValid struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	Draws        int    `json:"draws"`
	Rating       int    `json:"rating"`
	ActiveGameID int64  `json:"active_game_id,omitempty"`
	Message      string `json:"message"`
}

type SessionInvalid struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type DuplicateSession struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

type GameHistoryEntry struct {
	GameID      int64    `json:"game_id"`
	WhiteID     int64    `json:"white_player_id"`
	BlackID     int64    `json:"black_player_id"`
	Result      string   `json:"result"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time,omitempty"`
	DurationSec int64    `json:"duration_seconds"`
	MoveHistory []string `json:"move_history"`
	PGN         string   `json:"pgn,omitempty"`
}

type GameHistory struct {
	Type  string             `json:"type"`
	Games []GameHistoryEntry `json:"games"`
}

type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
}

type Leaderboard struct {
	Type    string             `json:"type"`
	Entries []LeaderboardEntry `json:"entries"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ResignResponse is the direct response to a successful resignation;
// GameEnded follows as a broadcast to both players.
type ResignResponse struct {
	Type    string `json:"type"`
	GameID  int64  `json:"game_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DrawOfferResponse is the direct response to the offering player.
type DrawOfferResponse struct {
	Type    string `json:"type"`
	GameID  int64  `json:"game_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DrawResponseResult is the direct response to whoever answered a draw
// offer, reporting how it was resolved.
type DrawResponseResult struct {
	Type     string `json:"type"`
	GameID   int64  `json:"game_id"`
	Accepted bool   `json:"accepted"`
	Result   string `json:"result,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// RematchRequestResponse is the direct response to whoever asked for a
// rematch; RematchOffered is the broadcast the opponent actually sees.
type RematchRequestResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChatMessage is relayed verbatim to the opponent in the sender's game.
type ChatMessage struct {
	Type     string `json:"type"`
	GameID   int64  `json:"game_id"`
	FromID   int64  `json:"from_id"`
	FromName string `json:"from_username"`
	Text     string `json:"text"`
}

// RematchOffered is broadcast to the opponent of a REQUEST_REMATCH call.
type RematchOffered struct {
	Type       string `json:"type"`
	FromGameID int64  `json:"from_game_id"`
	FromUserID int64  `json:"from_user_id"`
}
