package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byToken    map[string]int64
	userTokens map[int64]string
	usernames  map[int64]string
	deleted    []string
	cleanupN   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byToken:    map[string]int64{},
		userTokens: map[int64]string{},
		usernames:  map[int64]string{},
	}
}

func (f *fakeStore) Create(ctx context.Context, token string, userID int64, ip string) bool {
	if old, ok := f.userTokens[userID]; ok {
		delete(f.byToken, old)
	}
	f.byToken[token] = userID
	f.userTokens[userID] = token
	return true
}

func (f *fakeStore) Verify(ctx context.Context, token string) bool {
	_, ok := f.byToken[token]
	return ok
}

func (f *fakeStore) Touch(ctx context.Context, token string) bool { return true }

func (f *fakeStore) Delete(ctx context.Context, token string) bool {
	if userID, ok := f.byToken[token]; ok {
		delete(f.userTokens, userID)
	}
	delete(f.byToken, token)
	f.deleted = append(f.deleted, token)
	return true
}

func (f *fakeStore) DeleteByUser(ctx context.Context, userID int64) bool {
	token, ok := f.userTokens[userID]
	if !ok {
		return true
	}
	return f.Delete(ctx, token)
}

func (f *fakeStore) Cleanup(ctx context.Context, timeoutSeconds int) int { return f.cleanupN }

// InfoWithUsername mirrors store.SessionStore.InfoWithUsername's
// users-joined lookup, keyed off the same row this fake already tracks.
func (f *fakeStore) InfoWithUsername(ctx context.Context, token string) (int64, string, bool) {
	userID, ok := f.byToken[token]
	if !ok {
		return 0, "", false
	}
	return userID, f.usernames[userID], true
}

func TestCreate_InvalidatesPriorSessionForSameUser(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tok1, ok := r.Create(ctx, 42, "alice", "1.2.3.4")
	require.True(t, ok)
	assert.True(t, r.Verify(ctx, tok1))

	tok2, ok := r.Create(ctx, 42, "alice", "1.2.3.4")
	require.True(t, ok)
	assert.NotEqual(t, tok1, tok2)
	assert.False(t, r.Verify(ctx, tok1))
	assert.True(t, r.Verify(ctx, tok2))
}

func TestBindSocket_RejectsSecondTokenOnSameConn(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tokA, _ := r.Create(ctx, 1, "a", "")
	tokB, _ := r.Create(ctx, 2, "b", "")

	assert.True(t, r.BindSocket(tokA, "conn-1"))
	assert.False(t, r.BindSocket(tokB, "conn-1"))
}

func TestBindSocket_RejectsSameTokenOnSecondConn(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 1, "a", "")

	assert.True(t, r.BindSocket(tok, "conn-1"))
	assert.False(t, r.BindSocket(tok, "conn-2"))
}

func TestBindSocket_IdempotentForSameTokenAndConn(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 1, "a", "")
	assert.True(t, r.BindSocket(tok, "conn-1"))
	assert.True(t, r.BindSocket(tok, "conn-1"))
}

func TestUnbindSocket_FreesTheConnForANewBind(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tokA, _ := r.Create(ctx, 1, "a", "")
	tokB, _ := r.Create(ctx, 2, "b", "")

	require.True(t, r.BindSocket(tokA, "conn-1"))
	r.UnbindSocket("conn-1")
	assert.True(t, r.BindSocket(tokB, "conn-1"))
}

func TestUserIDForConn(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 7, "a", "")
	require.True(t, r.BindSocket(tok, "conn-1"))

	id, ok := r.UserIDForConn("conn-1")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	_, ok = r.UserIDForConn("conn-missing")
	assert.False(t, ok)
}

func TestConnIDForUser(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 7, "a", "")

	_, ok := r.ConnIDForUser(7)
	assert.False(t, ok, "no socket bound yet")

	require.True(t, r.BindSocket(tok, "conn-1"))
	connID, ok := r.ConnIDForUser(7)
	require.True(t, ok)
	assert.Equal(t, "conn-1", connID)

	r.UnbindSocket("conn-1")
	_, ok = r.ConnIDForUser(7)
	assert.False(t, ok)

	_, ok = r.ConnIDForUser(999)
	assert.False(t, ok)
}

func TestRemoveByConn_EvictsCacheAndDatabase(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 1, "a", "")
	require.True(t, r.BindSocket(tok, "conn-1"))

	r.RemoveByConn(ctx, "conn-1")
	assert.False(t, r.Verify(ctx, tok))
	assert.Contains(t, fs.deleted, tok)
}

func TestCleanup_ClearsEntireCacheWhenAnyRowRemoved(t *testing.T) {
	fs := newFakeStore()
	fs.cleanupN = 3
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 1, "a", "")
	require.True(t, r.BindSocket(tok, "conn-1"))

	n := r.Cleanup(ctx)
	assert.Equal(t, 3, n)

	_, ok := r.UserIDForConn("conn-1")
	assert.False(t, ok)
}

func TestVerify_ReinstatesCacheEntryAfterCleanupWipedIt(t *testing.T) {
	fs := newFakeStore()
	fs.usernames[1] = "alice"
	r := New(fs, 1800)
	ctx := context.Background()

	tok, _ := r.Create(ctx, 1, "alice", "")
	require.True(t, r.BindSocket(tok, "conn-1"))

	// A Cleanup sweep removing some other expired session wipes the
	// entire cache wholesale, including this still-valid token's entry.
	fs.cleanupN = 1
	r.Cleanup(ctx)
	_, _, ok := r.InfoByToken(tok)
	require.False(t, ok, "cache should be empty right after the sweep")

	// The token is still valid in the database (fakeStore.byToken still
	// has it), so Verify must succeed and lazily reinstate the entry
	// rather than leaving every dependent lookup broken.
	require.True(t, r.Verify(ctx, tok))

	userID, username, ok := r.InfoByToken(tok)
	require.True(t, ok, "Verify must reinstate the cache entry on a hit")
	assert.Equal(t, int64(1), userID)
	assert.Equal(t, "alice", username)

	assert.True(t, r.IsOnline(1))

	// The socket binding itself isn't persisted anywhere, so it can't be
	// recovered from the database; a fresh bind still succeeds cleanly
	// once the client re-verifies, rather than spuriously rejecting a
	// reconnect as a duplicate session.
	assert.True(t, r.BindSocket(tok, "conn-1"))
	connID, ok := r.ConnIDForUser(1)
	require.True(t, ok)
	assert.Equal(t, "conn-1", connID)
}

func TestVerify_DoesNotReinstateForAnInvalidToken(t *testing.T) {
	fs := newFakeStore()
	r := New(fs, 1800)
	ctx := context.Background()

	assert.False(t, r.Verify(ctx, "never-issued"))
	_, _, ok := r.InfoByToken("never-issued")
	assert.False(t, ok)
}
