package seeds

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/visual-replay-go/internal/engine"
)

func TestOutcomeSeedText(t *testing.T) {
	s, err := Outcome(Crash, int64(1), 100, 2.5)
	require.NoError(t, err)
	assert.Equal(t, "crash:1:100:2.5", s.String())
	assert.Equal(t, ModeOutcome, s.Mode())
	assert.Equal(t, "crash", s.Namespace().Tag)
}

func TestOutcomeSeedMatchesRawEngine(t *testing.T) {
	s, err := Outcome(Crash, 1, 100)
	require.NoError(t, err)

	want := engine.Floats("crash:1:100", 3)
	assert.Equal(t, want, s.Floats(3))
	assert.Equal(t, want[0], s.Rng()())
}

func TestDecimalAndFloatFieldsAgree(t *testing.T) {
	a, err := Outcome(Climb, 42, decimal.RequireFromString("1.50"))
	require.NoError(t, err)
	b, err := Outcome(Climb, 42, 1.5)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}

func TestOutcomeRejectsWallClock(t *testing.T) {
	_, err := Outcome(Roulette, 17, time.Now())
	require.ErrorIs(t, err, ErrWallClockField)

	_, err = Outcome(Roulette, 17, BucketAt(time.Now(), time.Second))
	require.ErrorIs(t, err, ErrWallClockField)
}

func TestModesAreNeverConflated(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_500))
	b := CurrentBucket(clock, SecondBucket)

	_, err := Outcome(DiceAnim, 1)
	assert.ErrorIs(t, err, ErrModeMismatch, "ambient namespace used for outcome seed")

	_, err = Ambient(Crash, b, 1)
	assert.ErrorIs(t, err, ErrModeMismatch, "outcome namespace used for ambient seed")

	_, err = Fixed(Crash, "layer1")
	assert.ErrorIs(t, err, ErrModeMismatch)

	amb, err := Ambient(DiceAnim, b, 3)
	require.NoError(t, err)
	assert.Equal(t, "dice-anim:1700000000:3", amb.String())
	assert.ErrorIs(t, amb.Require(ModeOutcome), ErrModeMismatch)
	assert.NoError(t, amb.Require(ModeAmbient))
}

func TestForgedNamespaceRejected(t *testing.T) {
	b := BucketAt(time.UnixMilli(1_700_000_000_500), SecondBucket)

	_, err := Ambient(Namespace{Tag: "crash", Mode: ModeAmbient}, b, 1, 100)
	assert.ErrorIs(t, err, ErrModeMismatch, "outcome tag relabelled as ambient")

	_, err = Outcome(Namespace{Tag: "coins", Mode: ModeOutcome}, 1)
	assert.ErrorIs(t, err, ErrModeMismatch, "ambient tag relabelled as outcome")

	_, err = Fixed(Namespace{Tag: "never-registered", Mode: ModeFixed}, "x")
	assert.ErrorIs(t, err, ErrUnknownNamespace)

	seed, err := Outcome(Namespace{Tag: "crash", Mode: ModeOutcome}, 1, 100)
	require.NoError(t, err, "a literal equal to the registered namespace is fine")
	assert.Equal(t, "crash:1:100", seed.String())
}

func TestAmbientSeedStableWithinBucketOnly(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_250))

	first, err := Ambient(LobbySpawn, CurrentBucket(clock, SpawnBucket), 0)
	require.NoError(t, err)

	clock.Advance(700 * time.Millisecond)
	same, err := Ambient(LobbySpawn, CurrentBucket(clock, SpawnBucket), 0)
	require.NoError(t, err)
	assert.Equal(t, first.String(), same.String())

	clock.Advance(100 * time.Millisecond)
	next, err := Ambient(LobbySpawn, CurrentBucket(clock, SpawnBucket), 0)
	require.NoError(t, err)
	assert.NotEqual(t, first.String(), next.String())
}

func TestOutcomeSeedIgnoresClock(t *testing.T) {
	// Two tabs rendering the same transaction at different times.
	tabA, err := Outcome(Crash, 9, 0, 2)
	require.NoError(t, err)
	tabB, err := Outcome(Crash, 9, 0, 2)
	require.NoError(t, err)

	assert.Equal(t, tabA.String(), tabB.String())
	assert.Equal(t, tabA.Floats(4), tabB.Floats(4))
}

func TestBucketAt(t *testing.T) {
	tests := []struct {
		ms    int64
		width time.Duration
		want  int64
	}{
		{0, time.Second, 0},
		{999, time.Second, 0},
		{1000, time.Second, 1},
		{1_700_000_000_749, SpawnBucket, 2_266_666_667},
		{-1, time.Second, -1},
		{-1000, time.Second, -1},
		{5000, 0, 5},
	}
	for _, tt := range tests {
		got := BucketAt(time.UnixMilli(tt.ms), tt.width)
		assert.Equal(t, tt.want, got.Index, "ms=%d width=%s", tt.ms, tt.width)
	}

	b := BucketAt(time.UnixMilli(2500), time.Second)
	assert.Equal(t, int64(2000), b.Start().UnixMilli())
}

func TestFormatNumberMatchesJavaScript(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{100, "100"},
		{1.5, "1.5"},
		{0.30000000000000004, "0.30000000000000004"},
		{-2.25, "-2.25"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
		{123456789012345680000, "123456789012345680000"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in), "FormatNumber(%v)", tt.in)
	}
}

func TestFormatFieldDecimalMatchesJavaScript(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.50", "1.5"},
		{"100", "100"},
		{"0.1", "0.1"},
		{"1000000000000000000000", "1e+21"},
		{"12345678901234567890123", "1.2345678901234568e+22"},
		{"0.123456789012345678901", "0.12345678901234568"},
		{"0.0000001", "1e-7"},
	}
	for _, tt := range tests {
		got, err := FormatField(decimal.RequireFromString(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "FormatField(decimal %s)", tt.in)
	}
}

func TestFormatFieldRejectsAmbiguousText(t *testing.T) {
	_, err := FormatField("a:b")
	assert.ErrorIs(t, err, ErrAmbiguousField)

	_, err = FormatField([]string{"x,y", "z"})
	assert.ErrorIs(t, err, ErrAmbiguousField)

	s, err := FormatField([]string{"🍒", "🍋", "🔔"})
	require.NoError(t, err)
	assert.Equal(t, "🍒,🍋,🔔", s)

	_, err = FormatField(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedField)
}

func TestDeriveAndTick(t *testing.T) {
	base, err := Outcome(SlotReel, 5, 0, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, "slotreel:5:0:A,B:7", base.Tick(7).String())
	assert.Equal(t, ModeOutcome, base.Tick(7).Mode())

	d, err := base.Derive("final")
	require.NoError(t, err)
	assert.Equal(t, "slotreel:5:0:A,B:final", d.String())

	_, err = base.Derive(time.Now())
	assert.ErrorIs(t, err, ErrWallClockField)
}

func TestRegisterNamespace(t *testing.T) {
	tag := fmt.Sprintf("presale-coins-%d", time.Now().UnixNano())
	ns, err := Register(tag, ModeFixed)
	require.NoError(t, err)
	assert.Equal(t, ModeFixed, ns.Mode)

	_, err = Register(tag, ModeAmbient)
	assert.ErrorIs(t, err, ErrDuplicateNamespace)

	_, err = Register("crash", ModeOutcome)
	assert.ErrorIs(t, err, ErrDuplicateNamespace)

	for _, bad := range []string{"", "has:colon", "has space"} {
		_, err = Register(bad, ModeOutcome)
		assert.ErrorIs(t, err, ErrInvalidNamespace, "tag %q", bad)
	}

	_, err = Register("bad-mode", Mode(42))
	assert.ErrorIs(t, err, ErrUnknownMode)

	got, ok := Lookup(tag)
	assert.True(t, ok)
	assert.Equal(t, ns, got)
}

func TestNamespacesSortedAndUnique(t *testing.T) {
	list := Namespaces()
	seen := map[string]bool{}
	for i, ns := range list {
		assert.False(t, seen[ns.Tag], "duplicate tag %q", ns.Tag)
		seen[ns.Tag] = true
		if i > 0 {
			assert.Less(t, list[i-1].Tag, ns.Tag)
		}
	}
	assert.True(t, seen["crash"])
	assert.True(t, seen["lobbyspawn"])
}

func TestModeJSON(t *testing.T) {
	data, err := json.Marshal(Namespace{Tag: "crash", Mode: ModeOutcome})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"crash","mode":"outcome"}`, string(data))

	var ns Namespace
	require.NoError(t, json.Unmarshal([]byte(`{"tag":"x","mode":"ambient"}`), &ns))
	assert.Equal(t, ModeAmbient, ns.Mode)

	assert.Error(t, json.Unmarshal([]byte(`{"mode":"sometimes"}`), &ns))
}

func TestHashIsStableAndShort(t *testing.T) {
	s, err := Outcome(Crash, 1, 100)
	require.NoError(t, err)
	assert.Len(t, s.Hash(), 16)
	assert.Equal(t, HashText("crash:1:100"), s.Hash())
	assert.NotContains(t, s.Hash(), "crash")
}

func TestBuildByTag(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_250)

	s, err := Build("coins", at, SecondBucket, 12.5)
	require.NoError(t, err)
	assert.Equal(t, "coins:1700000000:12.5", s.String())
	assert.Equal(t, ModeAmbient, s.Mode())

	s, err = Build("stars", at, SecondBucket, "small")
	require.NoError(t, err)
	assert.Equal(t, "stars:small", s.String(), "fixed seeds ignore the timestamp")

	s, err = Build("crash", at, SecondBucket, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "crash:1:100", s.String())

	_, err = Build("nope", at, SecondBucket)
	assert.ErrorIs(t, err, ErrUnknownNamespace)

	_, err = Build("crash", at, SecondBucket, at)
	assert.ErrorIs(t, err, ErrWallClockField)
}
