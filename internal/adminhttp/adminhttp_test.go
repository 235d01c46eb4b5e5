package adminhttp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newTestCtx(path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(path)
	return ctx
}

func TestHandleHealthz_ReportsOK(t *testing.T) {
	s := New(func(context.Context) Stats { return Stats{} })

	ctx := newTestCtx("/healthz")
	s.handle(ctx)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime_seconds")
}

func TestHandleMetrics_ReflectsStatsFunc(t *testing.T) {
	s := New(func(context.Context) Stats {
		return Stats{ActiveGames: 3, PendingChallenges: 1, ActiveSessions: 7}
	})

	ctx := newTestCtx("/metrics")
	s.handle(ctx)

	var stats Stats
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &stats))
	assert.Equal(t, 3, stats.ActiveGames)
	assert.Equal(t, 1, stats.PendingChallenges)
	assert.Equal(t, 7, stats.ActiveSessions)
}

func TestHandle_UnknownPathIs404(t *testing.T) {
	s := New(func(context.Context) Stats { return Stats{} })

	ctx := newTestCtx("/nope")
	s.handle(ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}
