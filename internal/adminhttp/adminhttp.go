// Package adminhttp is the admin sidecar: a /healthz liveness probe and a
// /metrics snapshot of the in-process registries, both answering in JSON,
// served on a separate port from the core protocol. Repurposes the teacher's only
// HTTP library, fasthttp, from an outbound client into a small inbound
// server — the teacher never ran one, so the wiring here follows
// fasthttp's own server idiom rather than an example in the pack.
package adminhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/quietfen/chessd/internal/obslog"
)

// Stats is the subset of live registry counters worth exposing. Populated
// fresh on every request by StatsFunc — there is no caching layer here.
type Stats struct {
	ActiveGames       int `json:"active_games"`
	PendingChallenges int `json:"pending_challenges"`
	ActiveSessions    int `json:"active_sessions"`
}

// StatsFunc produces a fresh snapshot on demand.
type StatsFunc func(ctx context.Context) Stats

// Server is the admin HTTP sidecar. Construct with New and call Serve.
type Server struct {
	stats     StatsFunc
	startedAt time.Time
	srv       *fasthttp.Server
}

func New(stats StatsFunc) *Server {
	s := &Server{stats: stats, startedAt: now()}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func now() time.Time { return time.Now() }

// Serve blocks on ListenAndServe until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		_ = s.srv.Shutdown()
	}()
	obslog.L().Info("adminhttp: listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(addr); err != nil {
		return fmt.Errorf("adminhttp: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		s.handleHealthz(ctx)
	case "/metrics":
		s.handleMetrics(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleHealthz(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	writeJSON(ctx, map[string]any{
		"status": "ok",
		"uptime_seconds": int64(now().Sub(s.startedAt).Seconds()),
	})
}

func (s *Server) handleMetrics(ctx *fasthttp.RequestCtx) {
	stats := s.stats(ctx)
	ctx.SetContentType("application/json")
	writeJSON(ctx, stats)
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(b)
}
