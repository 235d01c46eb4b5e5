// Package dispatcher is the stateless per-connection message router: it
// decodes one JSON request at a time, validates required fields and the
// caller's session, and calls into the session and match registries to
// produce at most one direct response. A successful MOVE and a relayed
// CHAT_MESSAGE return none: the mover's MOVE_ACCEPTED arrives through the
// match registry's broadcast callback, and the chat sender gets no reply.
// Any further messages the request
// triggers (MATCH_STARTED, OPPONENT_MOVE, GAME_ENDED, ...) are emitted by
// the registries themselves through their broadcast callback, never here.
package dispatcher

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/errcat"
	"github.com/quietfen/chessd/internal/match"
	"github.com/quietfen/chessd/internal/obslog"
	"github.com/quietfen/chessd/internal/session"
	"github.com/quietfen/chessd/internal/store"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// AvailablePlayersWindow is the number of users shown on either side of
// the caller's own rank in GET_AVAILABLE_PLAYERS.
const AvailablePlayersWindow = 10

// DefaultGameHistoryLimit and DefaultLeaderboardLimit mirror the
// original's hardcoded fallbacks when a request omits "limit".
const (
	DefaultGameHistoryLimit = 10
	DefaultLeaderboardLimit = 50
)

// Dispatcher holds every dependency a handler might need. One instance
// is shared across all connections — it carries no per-connection state
// itself; connID is threaded through each call instead.
type Dispatcher struct {
	Sessions    *session.Registry
	SessionDB   *store.SessionStore
	Matches     *match.Registry
	Users       *store.UserStore
	Games       *store.GameStore
	Errors      *errcat.Catalog
	DefaultAIDepth int
}

func New(sessions *session.Registry, sessionDB *store.SessionStore, matches *match.Registry, users *store.UserStore, games *store.GameStore, errs *errcat.Catalog, defaultAIDepth int) *Dispatcher {
	return &Dispatcher{
		Sessions:       sessions,
		SessionDB:      sessionDB,
		Matches:        matches,
		Users:          users,
		Games:          games,
		Errors:         errs,
		DefaultAIDepth: defaultAIDepth,
	}
}

type envelope struct {
	Type string `json:"type"`
}

// Dispatch decodes raw, routes it by its "type" field, and returns the
// marshalled direct response. connID identifies the calling connection
// for session binding and disconnect bookkeeping; it is opaque to this
// package.
func (d *Dispatcher) Dispatch(ctx context.Context, connID, ip string, raw []byte) (resp []byte) {
	defer func() {
		if r := recover(); r != nil {
			obslog.L().Error("dispatcher: recovered panic", zap.Any("recover", r))
			resp = d.errJSON("internal_error", "")
		}
	}()

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return d.errJSON("parse_error", "Failed to parse JSON: "+err.Error())
	}
	if env.Type == "" {
		return d.errJSON("invalid_message", "Message must contain 'type' field")
	}

	switch env.Type {
	case "VERIFY_SESSION":
		return d.handleVerifySession(ctx, connID, raw)
	case "LOGIN":
		return d.handleLogin(ctx, connID, ip, raw)
	case "REGISTER":
		return d.handleRegister(ctx, raw)
	case "LOGOUT":
		return d.handleLogout(ctx, raw)
	case "GET_AVAILABLE_PLAYERS":
		return d.handleGetAvailablePlayers(ctx, raw)
	case "CHALLENGE":
		return d.handleChallenge(ctx, raw)
	case "AI_CHALLENGE":
		return d.handleAIChallenge(ctx, raw)
	case "ACCEPT_CHALLENGE":
		return d.handleAcceptChallenge(ctx, raw)
	case "DECLINE_CHALLENGE":
		return d.handleDeclineChallenge(ctx, raw)
	case "CANCEL_CHALLENGE":
		return d.handleCancelChallenge(ctx, raw)
	case "MOVE":
		return d.handleMove(ctx, raw)
	case "RESIGN":
		return d.handleResign(ctx, raw)
	case "DRAW_OFFER":
		return d.handleDrawOffer(ctx, raw)
	case "DRAW_RESPONSE":
		return d.handleDrawResponse(ctx, raw)
	case "REQUEST_REMATCH":
		return d.handleRequestRematch(ctx, raw)
	case "GET_GAME_STATE":
		return d.handleGetGameState(ctx, raw)
	case "GET_GAME_HISTORY":
		return d.handleGetGameHistory(ctx, raw)
	case "GET_LEADERBOARD":
		return d.handleGetLeaderboard(ctx, raw)
	case "PING":
		return d.handlePing(raw)
	case "CHAT_MESSAGE":
		return d.handleChatMessage(ctx, raw)
	default:
		return d.errJSON("unknown_message_type", "Unknown message type: "+env.Type)
	}
}

// HandleDisconnect is called by the per-client worker when a connection's
// read loop exits, for whatever reason. It ends any live game the bound
// user was in (awarding the win to the opponent) and releases the socket
// binding and cached session.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, connID string) {
	if userID, ok := d.Sessions.UserIDForConn(connID); ok {
		d.Matches.HandlePlayerDisconnect(ctx, userID)
	}
	d.Sessions.RemoveByConn(ctx, connID)
}

func (d *Dispatcher) errJSON(code, message string) []byte {
	entry := d.Errors.Lookup(code)
	if message == "" {
		message = entry.Message
	}
	b, err := json.Marshal(chessproto.NewError(code, message, entry.Severity))
	if err != nil {
		return []byte(`{"type":"ERROR","error_code":"internal_error","message":"internal error","severity":"error"}`)
	}
	return b
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		obslog.L().Error("dispatcher: marshal response failed", zap.Error(err))
		return []byte(`{"type":"ERROR","error_code":"internal_error","message":"An internal error occurred. Please try again.","severity":"error"}`)
	}
	return b
}

// resolveSession verifies sessionID and returns the caller's user id and
// username. Verify is the authoritative check; InfoByToken serves the
// common case from the write-through cache. On the rare cache miss that
// follows a coarse cleanup-sweep invalidation (the cache is wiped
// wholesale even for sessions that remain valid), this falls through to
// the session and user stores directly rather than leaving the caller
// stuck until their next login.
func (d *Dispatcher) resolveSession(ctx context.Context, sessionID string) (userID int64, username string, ok bool) {
	if !d.Sessions.Verify(ctx, sessionID) {
		return 0, "", false
	}
	if uid, uname, ok := d.Sessions.InfoByToken(sessionID); ok {
		return uid, uname, true
	}
	sess := d.SessionDB.Info(ctx, sessionID)
	if sess == nil {
		return 0, "", false
	}
	u := d.Users.ByID(ctx, sess.UserID)
	if u == nil {
		return 0, "", false
	}
	return u.ID, u.Username, true
}
