// Package session is a write-through cache over the persistent sessions
// table: three in-memory maps (by token, by user id, by connection id)
// guarded by one mutex, with the database treated as the source of
// truth. A lookup miss in the cache falls through to the database; a
// database-confirmed invalid token evicts the cache entry. This mirrors
// the original server's SessionManager, generalized from a raw socket fd
// key to an opaque per-connection id string.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/obslog"
)

// persistentStore is the subset of *store.SessionStore the registry
// depends on, narrowed to an interface so tests can substitute a fake
// without a live database.
type persistentStore interface {
	Create(ctx context.Context, token string, userID int64, ip string) bool
	Verify(ctx context.Context, token string) bool
	Touch(ctx context.Context, token string) bool
	Delete(ctx context.Context, token string) bool
	DeleteByUser(ctx context.Context, userID int64) bool
	Cleanup(ctx context.Context, timeoutSeconds int) int
	InfoWithUsername(ctx context.Context, token string) (userID int64, username string, ok bool)
}

type cachedSession struct {
	Token        string
	UserID       int64
	Username     string
	ConnID       string
	LastActivity time.Time
}

// Registry is the process-wide session cache. Construct with New.
type Registry struct {
	mu             sync.Mutex
	byToken        map[string]*cachedSession
	byUserID       map[int64]string
	byConnID       map[string]string
	store          persistentStore
	timeoutSeconds int
}

func New(store persistentStore, timeoutSeconds int) *Registry {
	return &Registry{
		byToken:        make(map[string]*cachedSession),
		byUserID:       make(map[int64]string),
		byConnID:       make(map[string]string),
		store:          store,
		timeoutSeconds: timeoutSeconds,
	}
}

const sessionTokenBytes = 16

func generateToken() string {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Create generates a token, persists it (replacing any prior session for
// userID), and caches it. Returns "", false on persistence failure.
func (r *Registry) Create(ctx context.Context, userID int64, username, ip string) (string, bool) {
	token := generateToken()
	if !r.store.Create(ctx, token, userID, ip) {
		return "", false
	}

	r.mu.Lock()
	if old, ok := r.byUserID[userID]; ok {
		r.evictLocked(old)
	}
	cs := &cachedSession{Token: token, UserID: userID, Username: username, LastActivity: time.Now()}
	r.byToken[token] = cs
	r.byUserID[userID] = token
	r.mu.Unlock()

	return token, true
}

// Verify reports whether token is currently active, consulting the
// database as the source of truth. A cache hit just refreshes last
// activity; a cache miss on a database-confirmed-valid token means the
// cache was wiped wholesale by a Cleanup sweep that happened to remove
// some other session, so this lazily reinstates the entry from the
// database rather than leaving every surviving session's cache state
// gone until its next login. An invalid token evicts any stale entry.
func (r *Registry) Verify(ctx context.Context, token string) bool {
	if !r.store.Verify(ctx, token) {
		r.mu.Lock()
		r.evictLocked(token)
		r.mu.Unlock()
		return false
	}

	r.mu.Lock()
	cs, ok := r.byToken[token]
	if ok {
		cs.LastActivity = time.Now()
		r.mu.Unlock()
	} else {
		r.mu.Unlock()
		if userID, username, ok := r.store.InfoWithUsername(ctx, token); ok {
			r.mu.Lock()
			if _, exists := r.byToken[token]; !exists {
				r.byToken[token] = &cachedSession{Token: token, UserID: userID, Username: username, LastActivity: time.Now()}
				r.byUserID[userID] = token
			}
			r.mu.Unlock()
		}
	}

	r.store.Touch(ctx, token)
	return true
}

// BindSocket associates connID with token. Rejects (returns false,
// without mutating anything) if token is already bound to a different
// connection id — the DUPLICATE_SESSION case.
func (r *Registry) BindSocket(token, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs, ok := r.byToken[token]
	if !ok {
		return false
	}
	if cs.ConnID != "" && cs.ConnID != connID {
		return false
	}
	if existingToken, ok := r.byConnID[connID]; ok && existingToken != token {
		return false
	}

	cs.ConnID = connID
	r.byConnID[connID] = token
	return true
}

// UnbindSocket removes connID's binding without touching the underlying
// session row.
func (r *Registry) UnbindSocket(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byConnID[connID]
	if !ok {
		return
	}
	delete(r.byConnID, connID)
	if cs, ok := r.byToken[token]; ok && cs.ConnID == connID {
		cs.ConnID = ""
	}
}

// TokenForConn returns the session token bound to connID, or "" if none.
func (r *Registry) TokenForConn(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byConnID[connID]
}

// UserIDForConn returns the user id bound to connID, or 0, false if none.
func (r *Registry) UserIDForConn(connID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byConnID[connID]
	if !ok {
		return 0, false
	}
	cs, ok := r.byToken[token]
	if !ok {
		return 0, false
	}
	return cs.UserID, true
}

// InfoByToken returns the cached user id and username for token, or
// zero values, false if the token is not currently cached (callers are
// expected to have just called Verify, which reinstates the cache entry
// on a cache miss for a token the database still holds, so this reads
// the cache only rather than making a second database round trip).
func (r *Registry) InfoByToken(token string) (userID int64, username string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.byToken[token]
	if !ok {
		return 0, "", false
	}
	return cs.UserID, cs.Username, true
}

// ConnIDForUser returns the connection id currently bound to userID's
// session, or "", false if userID has no cached session or its session
// has no bound socket.
func (r *Registry) ConnIDForUser(userID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byUserID[userID]
	if !ok {
		return "", false
	}
	cs, ok := r.byToken[token]
	if !ok || cs.ConnID == "" {
		return "", false
	}
	return cs.ConnID, true
}

// IsOnline reports whether userID currently has a cached session,
// i.e. a session the registry has seen since the last cache flush.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUserID[userID]
	return ok
}

// Touch refreshes a token's activity both in cache and in the database.
func (r *Registry) Touch(ctx context.Context, token string) {
	r.mu.Lock()
	if cs, ok := r.byToken[token]; ok {
		cs.LastActivity = time.Now()
	}
	r.mu.Unlock()
	r.store.Touch(ctx, token)
}

// TouchByConn is Touch keyed by the connection bound to token.
func (r *Registry) TouchByConn(ctx context.Context, connID string) {
	token := r.TokenForConn(connID)
	if token == "" {
		return
	}
	r.Touch(ctx, token)
}

// Remove deletes token from the database and evicts it from the cache.
func (r *Registry) Remove(ctx context.Context, token string) {
	r.store.Delete(ctx, token)
	r.mu.Lock()
	r.evictLocked(token)
	r.mu.Unlock()
}

// RemoveByConn removes whatever session is bound to connID, if any.
func (r *Registry) RemoveByConn(ctx context.Context, connID string) {
	token := r.TokenForConn(connID)
	if token == "" {
		return
	}
	r.Remove(ctx, token)
}

func (r *Registry) evictLocked(token string) {
	cs, ok := r.byToken[token]
	if !ok {
		return
	}
	delete(r.byToken, token)
	delete(r.byUserID, cs.UserID)
	if cs.ConnID != "" {
		delete(r.byConnID, cs.ConnID)
	}
}

// Cleanup sweeps the database for sessions idle longer than the
// configured timeout. On any removal it clears the entire cache, rather
// than reconciling individual entries, the way the original resynced
// wholesale after a database-side cleanup.
func (r *Registry) Cleanup(ctx context.Context) int {
	n := r.store.Cleanup(ctx, r.timeoutSeconds)
	if n > 0 {
		r.mu.Lock()
		r.byToken = make(map[string]*cachedSession)
		r.byUserID = make(map[int64]string)
		r.byConnID = make(map[string]string)
		r.mu.Unlock()
		obslog.L().Info("swept expired sessions", zap.Int("count", n))
	}
	return n
}

// RunCleanupLoop calls Cleanup on a fixed interval until ctx is
// cancelled. Intended to be started as its own goroutine from the
// composition root.
func (r *Registry) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup(ctx)
		}
	}
}
