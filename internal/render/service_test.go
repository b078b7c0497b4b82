package render

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/seeds"
	"github.com/MJE43/visual-replay-go/internal/store"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

var morning = time.UnixMilli(1_700_000_000_250).UTC()

func outcome(ri int64, payout, wager string) visuals.Outcome {
	return visuals.Outcome{
		ResultIndex: ri,
		Payout:      decimal.RequireFromString(payout),
		Wager:       decimal.RequireFromString(wager),
	}
}

func newStore(t *testing.T) store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "render.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestRenderOutcomeIsCached(t *testing.T) {
	svc := NewService(WithCache(16, time.Minute), WithClock(clockwork.NewFakeClockAt(morning)))
	ctx := context.Background()
	req := Request{Effect: "crash", Outcome: outcome(1, "100", "50"), Params: map[string]any{"target": 2.0}}

	first, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "crash:1:100:2", first.Seed)
	assert.Equal(t, seeds.HashText("crash:1:100:2"), first.Frame.SeedHash)
	assert.Equal(t, engine.Version, first.EngineVersion)

	second, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Frame, second.Frame)

	svc.ClearCache()
	third, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, first.Frame, third.Frame)
}

func TestRenderWagerChangesCacheKey(t *testing.T) {
	svc := NewService(WithCache(16, time.Minute))
	ctx := context.Background()

	a, err := svc.Render(ctx, Request{Effect: "crash-climb", Outcome: outcome(7, "3", "1")})
	require.NoError(t, err)
	b, err := svc.Render(ctx, Request{Effect: "crash-climb", Outcome: outcome(7, "3", "2")})
	require.NoError(t, err)

	assert.False(t, b.Cached, "same seed with another wager must not hit the cache")
	assert.Equal(t, a.Seed, b.Seed)
}

func TestRenderOutcomeIgnoresClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(morning)
	svc := NewService(WithClock(clock))
	ctx := context.Background()
	req := Request{Effect: "roulette-ball", Outcome: outcome(17, "36", "1")}

	a, err := svc.Render(ctx, req)
	require.NoError(t, err)
	clock.Advance(72 * time.Hour)
	b, err := svc.Render(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, a.Frame, b.Frame)
	assert.Equal(t, "roulette:17:17", a.Seed)
}

func TestRenderAmbientFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(morning)
	svc := NewService(WithClock(clock))
	ctx := context.Background()
	req := Request{Effect: "coin-shower", Outcome: outcome(1, "12.5", "1")}

	a, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "coins:1700000000:12.5", a.Seed)

	clock.Advance(200 * time.Millisecond)
	b, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, a.Frame, b.Frame, "same bucket")

	clock.Advance(time.Second)
	c, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, a.Seed, c.Seed)

	pinned := morning
	req.At = &pinned
	d, err := svc.Render(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, a.Frame, d.Frame, "At replays an earlier bucket")
}

func TestRenderErrors(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	_, err := svc.Render(ctx, Request{Effect: "nope"})
	assert.ErrorIs(t, err, visuals.ErrEffectNotFound)

	_, err = svc.Render(ctx, Request{Effect: "crash", Outcome: visuals.Outcome{ResultIndex: -1}})
	assert.ErrorIs(t, err, visuals.ErrInvalidOutcome)

	_, err = svc.Render(ctx, Request{Effect: "crash", Outcome: outcome(1, "2", "1"), Params: map[string]any{"target": "high"}})
	assert.ErrorIs(t, err, visuals.ErrInvalidParams)

	_, err = svc.Render(ctx, Request{Effect: "crash", Outcome: outcome(1, "2", "1"), Persist: true})
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestPersistAndVerifyStored(t *testing.T) {
	db := newStore(t)
	svc := NewService(WithStore(db), WithClock(clockwork.NewFakeClockAt(morning)))
	ctx := context.Background()

	for _, req := range []Request{
		{Effect: "slot-reel", Outcome: outcome(9, "5", "1"), Params: map[string]any{"reel": 1, "symbols": []string{"🍒", "🍋", "🔔"}}},
		{Effect: "lobby-spawn", Params: map[string]any{"spawned": 4}},
		{Effect: "starfield", Params: map[string]any{"layer": "medium", "count": 20}},
	} {
		req.Persist = true
		res, err := svc.Render(ctx, req)
		require.NoError(t, err, req.Effect)
		require.NotEmpty(t, res.RenderID)

		rec, err := db.GetRender(ctx, res.RenderID)
		require.NoError(t, err)
		assert.Equal(t, res.Seed, rec.Seed)
		assert.Equal(t, res.Frame.SeedHash, rec.SeedHash)

		var stored visuals.Frame
		require.NoError(t, json.Unmarshal([]byte(rec.FrameJSON), &stored))
		assert.Equal(t, res.Frame.Metric, stored.Metric)

		verdict, err := svc.VerifyStored(ctx, res.RenderID)
		require.NoError(t, err, req.Effect)
		assert.True(t, verdict.Match, "%s: %v", req.Effect, verdict.Mismatches)
	}

	_, err := svc.VerifyStored(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestVerify(t *testing.T) {
	svc := NewService()
	ctx := context.Background()

	res, err := svc.Render(ctx, Request{Effect: "hilo-rank", Outcome: outcome(4, "0", "1")})
	require.NoError(t, err)

	metric := res.Frame.Metric
	ok, err := svc.Verify(ctx, VerifyRequest{
		Request:          Request{Effect: "hilo-rank", Outcome: outcome(4, "0", "1")},
		ExpectedSeedHash: res.Frame.SeedHash,
		ExpectedMetric:   &metric,
	})
	require.NoError(t, err)
	assert.True(t, ok.Match)

	wrong := metric + 1
	bad, err := svc.Verify(ctx, VerifyRequest{
		Request:          Request{Effect: "hilo-rank", Outcome: outcome(4, "0", "1")},
		ExpectedSeedHash: "0000000000000000",
		ExpectedMetric:   &wrong,
	})
	require.NoError(t, err)
	assert.False(t, bad.Match)
	assert.Len(t, bad.Mismatches, 2)

	_, err = svc.Verify(ctx, VerifyRequest{Request: Request{Effect: "dice-anim"}})
	assert.ErrorIs(t, err, visuals.ErrNoTimestamp)
}

func TestFrameCacheDropsOtherVersions(t *testing.T) {
	c := newFrameCache(4, time.Minute)
	c.Set("k", visuals.Frame{Effect: "crash"}, []byte(`{}`))
	c.lru.Add("old", &cachedFrame{Version: "xmur3-0.9.0"})

	_, ok := c.Get("k")
	assert.True(t, ok)
	_, ok = c.Get("old")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}
