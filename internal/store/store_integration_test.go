//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestDB spins up a throwaway Postgres container, runs the embedded
// migrations against it, and returns a connected *DB. Gated behind the
// "integration" build tag since it needs a Docker daemon; run with
// `go test -tags=integration ./internal/store/...`.
func newTestDB(t *testing.T) *DB {
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

	db, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(ctx, db))
	return db
}

func TestUserStore_CreateAuthenticateRoundTrip(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	id := users.Create(ctx, "alice", "secret", "")
	require.Greater(t, id, int64(0))

	require.True(t, users.Exists(ctx, "alice"))
	require.Equal(t, id, users.Authenticate(ctx, "alice", "secret"))
	require.Equal(t, int64(-1), users.Authenticate(ctx, "alice", "wrong"))

	dup := users.Create(ctx, "alice", "other", "")
	require.Equal(t, int64(-1), dup)
}

func TestUserStore_RatingAndCounters(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	id := users.Create(ctx, "bob", "secret", "")
	users.IncrementWins(ctx, id)
	users.UpdateRating(ctx, id, 1003)

	u := users.ByID(ctx, id)
	require.NotNil(t, u)
	require.Equal(t, 1, u.Wins)
	require.Equal(t, 1003, u.Rating)
}

func TestSessionStore_CreateReplacesPriorSession(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	sessions := NewSessionStore(db)
	ctx := context.Background()

	id := users.Create(ctx, "carol", "secret", "")
	require.True(t, sessions.Create(ctx, "token-1", id, "127.0.0.1"))
	require.True(t, sessions.Verify(ctx, "token-1"))

	require.True(t, sessions.Create(ctx, "token-2", id, "127.0.0.1"))
	require.False(t, sessions.Verify(ctx, "token-1"))
	require.True(t, sessions.Verify(ctx, "token-2"))
	require.Equal(t, 1, sessions.Count(ctx))
}

func TestSessionStore_CleanupRemovesStaleRows(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	sessions := NewSessionStore(db)
	ctx := context.Background()

	id := users.Create(ctx, "dave", "secret", "")
	require.True(t, sessions.Create(ctx, "token-stale", id, ""))

	_, err := db.conn.ExecContext(ctx,
		`UPDATE active_sessions SET last_activity = now() - interval '1 hour' WHERE session_id = $1`,
		"token-stale")
	require.NoError(t, err)

	n := sessions.Cleanup(ctx, 1800)
	require.Equal(t, 1, n)
	require.False(t, sessions.Verify(ctx, "token-stale"))
}

func TestGameStore_CreateAppendEndRoundTrip(t *testing.T) {
	db := newTestDB(t)
	users := NewUserStore(db)
	games := NewGameStore(db)
	ctx := context.Background()

	white := users.Create(ctx, "erin", "secret", "")
	black := users.Create(ctx, "frank", "secret", "")

	gameID := games.Create(ctx, white, black)
	require.Greater(t, gameID, int64(0))

	require.True(t, games.AppendMove(ctx, gameID, "e2e4"))
	require.True(t, games.AppendMove(ctx, gameID, "e7e5"))
	require.True(t, games.End(ctx, gameID, "WHITE_WIN", `["e2e4","e7e5"]`))

	g := games.ByID(ctx, gameID)
	require.NotNil(t, g)
	require.True(t, g.Result.Valid)
	require.Equal(t, "WHITE_WIN", g.Result.String)
	require.True(t, g.EndTime.Valid)
}
