//go:build integration

package dispatcher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quietfen/chessd/internal/errcat"
	"github.com/quietfen/chessd/internal/match"
	"github.com/quietfen/chessd/internal/session"
	"github.com/quietfen/chessd/internal/store"
	"github.com/quietfen/chessd/pkg/chessproto"
)

// newTestDispatcher wires a real Dispatcher over a throwaway Postgres
// container, exactly like internal/store's own integration tests. Gated
// behind the "integration" build tag since it needs a Docker daemon; run
// with `go test -tags=integration ./internal/dispatcher/...`.
func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:16-alpine",
		tcPostgres.WithDatabase("chessd_test"),
		tcPostgres.WithUsername("chessd"),
		tcPostgres.WithPassword("chessd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.RunMigrations(ctx, db))

	users := store.NewUserStore(db)
	games := store.NewGameStore(db)
	sessionDB := store.NewSessionStore(db)
	sessions := session.New(sessionDB, 1800)
	matches := match.New(users, games, func(int64, any) {})

	catalog, err := errcat.New("")
	require.NoError(t, err)

	return New(sessions, sessionDB, matches, users, games, catalog, 1)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDispatch_RegisterLoginVerifySessionRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	regRaw := d.Dispatch(ctx, "conn-reg", "1.2.3.4",
		mustJSON(t, chessproto.RegisterRequest{Type: "REGISTER", Username: "alice", Password: "secret"}))
	var reg chessproto.RegisterResponse
	require.NoError(t, json.Unmarshal(regRaw, &reg))
	require.Equal(t, "success", reg.Status)

	loginRaw := d.Dispatch(ctx, "conn-1", "1.2.3.4",
		mustJSON(t, chessproto.LoginRequest{Type: "LOGIN", Username: "alice", Password: "secret"}))
	var login chessproto.LoginResponse
	require.NoError(t, json.Unmarshal(loginRaw, &login))
	require.Equal(t, "success", login.Status)
	require.NotEmpty(t, login.SessionID)

	vsRaw := d.Dispatch(ctx, "conn-2", "1.2.3.4",
		mustJSON(t, chessproto.VerifySessionRequest{Type: "VERIFY_SESSION", SessionID: login.SessionID}))
	var dup chessproto.DuplicateSession
	require.NoError(t, json.Unmarshal(vsRaw, &dup))
	require.Equal(t, "DUPLICATE_SESSION", dup.Type, "session is still bound to conn-1")

	vsRaw = d.Dispatch(ctx, "conn-1", "1.2.3.4",
		mustJSON(t, chessproto.VerifySessionRequest{Type: "VERIFY_SESSION", SessionID: login.SessionID}))
	var valid chessproto.SessionValid
	require.NoError(t, json.Unmarshal(vsRaw, &valid))
	require.Equal(t, "SESSION_VALID", valid.Type)
	require.Equal(t, "alice", valid.Username)
}

func TestDispatch_ChallengeAcceptAndMoveRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	d.Dispatch(ctx, "c-reg1", "", mustJSON(t, chessproto.RegisterRequest{Type: "REGISTER", Username: "alice", Password: "secret"}))
	d.Dispatch(ctx, "c-reg2", "", mustJSON(t, chessproto.RegisterRequest{Type: "REGISTER", Username: "bob", Password: "secret"}))

	var aliceLogin, bobLogin chessproto.LoginResponse
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.LoginRequest{Type: "LOGIN", Username: "alice", Password: "secret"})),
		&aliceLogin))
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.LoginRequest{Type: "LOGIN", Username: "bob", Password: "secret"})),
		&bobLogin))
	d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.VerifySessionRequest{Type: "VERIFY_SESSION", SessionID: aliceLogin.SessionID}))
	d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.VerifySessionRequest{Type: "VERIFY_SESSION", SessionID: bobLogin.SessionID}))

	var chal chessproto.ChallengeSent
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.ChallengeRequest{
			Type: "CHALLENGE", SessionID: aliceLogin.SessionID, TargetUsername: "bob", PreferredColor: "white",
		})), &chal))
	require.NotEmpty(t, chal.ChallengeID)

	var accept chessproto.ChallengeAccepted
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.AcceptChallengeRequest{
			Type: "ACCEPT_CHALLENGE", SessionID: bobLogin.SessionID, ChallengeID: chal.ChallengeID,
		})), &accept))
	require.Greater(t, accept.GameID, int64(0))

	moveRaw := d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.MoveRequest{
		Type: "MOVE", SessionID: aliceLogin.SessionID, GameID: accept.GameID, Move: "e2e4",
	}))
	require.Nil(t, moveRaw, "MakeMove delivers MOVE_ACCEPTED via the broadcast callback, not a direct response")

	state, ok := d.Matches.GetGameState(accept.GameID)
	require.True(t, ok)
	require.Equal(t, "black", state.ToMove)
}

func TestDispatch_GetGameHistoryRendersPGNForFinishedGame(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	d.Dispatch(ctx, "c-reg1", "", mustJSON(t, chessproto.RegisterRequest{Type: "REGISTER", Username: "alice", Password: "secret"}))
	d.Dispatch(ctx, "c-reg2", "", mustJSON(t, chessproto.RegisterRequest{Type: "REGISTER", Username: "bob", Password: "secret"}))

	var aliceLogin, bobLogin chessproto.LoginResponse
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.LoginRequest{Type: "LOGIN", Username: "alice", Password: "secret"})),
		&aliceLogin))
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.LoginRequest{Type: "LOGIN", Username: "bob", Password: "secret"})),
		&bobLogin))
	d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.VerifySessionRequest{Type: "VERIFY_SESSION", SessionID: aliceLogin.SessionID}))
	d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.VerifySessionRequest{Type: "VERIFY_SESSION", SessionID: bobLogin.SessionID}))

	var chal chessproto.ChallengeSent
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.ChallengeRequest{
			Type: "CHALLENGE", SessionID: aliceLogin.SessionID, TargetUsername: "bob", PreferredColor: "white",
		})), &chal))

	var accept chessproto.ChallengeAccepted
	require.NoError(t, json.Unmarshal(
		d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.AcceptChallengeRequest{
			Type: "ACCEPT_CHALLENGE", SessionID: bobLogin.SessionID, ChallengeID: chal.ChallengeID,
		})), &accept))

	d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.MoveRequest{
		Type: "MOVE", SessionID: aliceLogin.SessionID, GameID: accept.GameID, Move: "e2e4",
	}))
	d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.MoveRequest{
		Type: "MOVE", SessionID: bobLogin.SessionID, GameID: accept.GameID, Move: "e7e5",
	}))

	resignRaw := d.Dispatch(ctx, "conn-alice", "", mustJSON(t, chessproto.ResignRequest{
		Type: "RESIGN", SessionID: aliceLogin.SessionID, GameID: accept.GameID,
	}))
	var resignResp chessproto.ResignResponse
	require.NoError(t, json.Unmarshal(resignRaw, &resignResp))

	historyRaw := d.Dispatch(ctx, "conn-bob", "", mustJSON(t, chessproto.GetGameHistoryRequest{
		Type: "GET_GAME_HISTORY", SessionID: bobLogin.SessionID,
	}))
	var history chessproto.GameHistory
	require.NoError(t, json.Unmarshal(historyRaw, &history))
	require.Len(t, history.Games, 1)

	entry := history.Games[0]
	require.Equal(t, accept.GameID, entry.GameID)
	require.Equal(t, []string{"e2e4", "e7e5"}, entry.MoveHistory)
	require.Contains(t, entry.PGN, `[White "alice"]`)
	require.Contains(t, entry.PGN, `[Black "bob"]`)
	require.Contains(t, entry.PGN, "1. e4 e5")
}

func TestDispatch_PingEchoesTimestamp(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	respRaw := d.Dispatch(ctx, "conn-1", "", mustJSON(t, chessproto.PingRequest{Type: "PING", Timestamp: 42}))
	var pong chessproto.Pong
	require.NoError(t, json.Unmarshal(respRaw, &pong))
	require.Equal(t, int64(42), pong.Timestamp)
}

func TestDispatch_UnknownMessageType(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	respRaw := d.Dispatch(ctx, "conn-1", "", []byte(`{"type":"NOT_A_REAL_TAG"}`))
	var errResp chessproto.Error
	require.NoError(t, json.Unmarshal(respRaw, &errResp))
	require.Equal(t, "ERROR", errResp.Type)
}
